package commands

import (
	"fmt"

	"github.com/manish3089/Token-Generator/internal/codec"
	"github.com/manish3089/Token-Generator/internal/sharekhan"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cryptKey      string
	loginURLAppID string
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <authorization-code> <secret>",
	Short: "Print the encrypted exchange payload for a code and secret",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cdc, err := newCodec(cmd)
		if err != nil {
			return err
		}
		msg := models.CredentialToken{AuthorizationCode: args[0], SecretID: args[1]}.Message()
		out, err := cdc.Encrypt(msg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <token>",
	Short: "Decrypt a base64url token produced by encrypt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cdc, err := newCodec(cmd)
		if err != nil {
			return err
		}
		plain, err := cdc.Decrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(plain))
		return nil
	},
}

var loginURLCmd = &cobra.Command{
	Use:   "login-url",
	Short: "Print the Sharekhan login URL for an app",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		appID := loginURLAppID
		if appID == "" {
			appID = cfg.Sharekhan.APIKey
		}
		if appID == "" {
			return fmt.Errorf("--app-id or SHAREKHAN_API_KEY is required")
		}

		quiet := logrus.New()
		quiet.SetOutput(cmd.ErrOrStderr())
		client := sharekhan.NewClient(&cfg.Sharekhan, nil, quiet)
		fmt.Fprintln(cmd.OutOrStdout(), client.LoginURL(appID))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{encryptCmd, decryptCmd} {
		c.Flags().StringVar(&cryptKey, "key", "", "encryption key (overrides SHAREKHAN_ENCRYPTION_KEY)")
		rootCmd.AddCommand(c)
	}

	loginURLCmd.Flags().StringVar(&loginURLAppID, "app-id", "", "API key to log in with (defaults to SHAREKHAN_API_KEY)")
	rootCmd.AddCommand(loginURLCmd)
}

func newCodec(cmd *cobra.Command) (*codec.Codec, error) {
	key := cryptKey
	if key == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		key = cfg.Sharekhan.EncryptionKey
	}
	return codec.New(codec.NewConfig(key))
}
