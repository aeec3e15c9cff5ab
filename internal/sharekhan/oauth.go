package sharekhan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
)

// FlowState tracks where a login handshake stands
type FlowState string

const (
	StateUnauthenticated FlowState = "unauthenticated"
	StateAuthorized      FlowState = "authorized"
	StateExchanging      FlowState = "exchanging"
	StateCompleted       FlowState = "completed"
	StateFailed          FlowState = "failed"
)

type encryptedTokenRequest struct {
	APIKey        string `json:"api_key"`
	EncryptedData string `json:"encrypted_data"`
	State         string `json:"state"`
}

type plaintextTokenRequest struct {
	APIKey       string `json:"api_key"`
	RequestToken string `json:"request_token"`
	SecretKey    string `json:"secret_key"`
	State        string `json:"state"`
}

// LoginURL returns the hosted login page the browser is redirected to.
// Without a callback URL configured the broker falls back to the one
// registered for the app.
func (c *Client) LoginURL(apiKey string) string {
	q := url.Values{}
	q.Set("api_key", apiKey)
	q.Set("state", c.config.State)
	q.Set("version_id", c.config.VersionID)
	if c.config.CallbackURL != "" {
		q.Set("callback_url", c.config.CallbackURL)
	}
	return c.endpoint(loginPagePath) + "?" + q.Encode()
}

// AuthorizationCode extracts the code from the login callback query.
// Sharekhan sends request_token; code is accepted for compatibility.
func AuthorizationCode(q url.Values) (string, error) {
	if code := q.Get("request_token"); code != "" {
		return code, nil
	}
	if code := q.Get("code"); code != "" {
		return code, nil
	}
	return "", ErrNoAuthorizationCode
}

// ExchangeToken trades an authorization code and secret for an access token.
//
// The encrypted payload is sent first. If the broker answers with a
// non-success status the plaintext payload is tried exactly once. Which shape
// the broker really wants is not settled, so both stay in place.
func (c *Client) ExchangeToken(ctx context.Context, apiKey, authCode, secretID string) (*models.TokenResult, error) {
	log := c.logger.WithFields(logrus.Fields{
		"api_key": apiKey,
		"state":   StateExchanging,
	})

	cred := models.CredentialToken{AuthorizationCode: authCode, SecretID: secretID}
	encrypted, err := c.codec.Encrypt(cred.Message())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	shape := models.PayloadEncrypted
	body, err := c.postToken(ctx, encryptedTokenRequest{
		APIKey:        apiKey,
		EncryptedData: encrypted,
		State:         c.config.State,
	})

	var terr *TransportError
	if errors.As(err, &terr) && terr.StatusCode != 0 {
		log.WithFields(logrus.Fields{
			"status": terr.StatusCode,
			"body":   terr.Body,
		}).Warn("Encrypted token request rejected, retrying with plaintext payload")

		shape = models.PayloadPlaintext
		body, err = c.postToken(ctx, plaintextTokenRequest{
			APIKey:       apiKey,
			RequestToken: authCode,
			SecretKey:    secretID,
			State:        c.config.State,
		})
	}
	if err != nil {
		log.WithError(err).WithField("state", StateFailed).Error("Token exchange failed")
		return nil, err
	}

	var resp models.AccessTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if resp.Data == nil {
		resp.Data = map[string]interface{}{}
	}

	log.WithFields(logrus.Fields{
		"state":         StateCompleted,
		"payload_shape": shape,
		"status":        resp.Status,
	}).Info("Access token exchange completed")

	return &models.TokenResult{
		AccessTokenResponse: resp,
		APIKey:              apiKey,
		PayloadShape:        shape,
		EncryptedPayload:    encrypted,
		IssuedAt:            time.Now().UTC(),
	}, nil
}

func (c *Client) postToken(ctx context.Context, payload interface{}) ([]byte, error) {
	req, err := c.createRequest(ctx, http.MethodPost, c.endpoint(accessTokenPath), payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do("access token", req)
}
