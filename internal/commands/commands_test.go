package commands

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runSplit(t, args...)
	return stdout, err
}

func runSplit(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return strings.TrimSpace(stdout.String()), stderr.String(), err
}

func TestLoginURL_StdoutHoldsOnlyTheURL(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	// An unreadable .env makes the loader print a note.
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".env"), 0o755))

	stdout, stderr, err := runSplit(t, "login-url", "--app-id", "my-app")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Note: .env file not loaded")

	loc, err := url.Parse(stdout)
	require.NoError(t, err)
	assert.Equal(t, "my-app", loc.Query().Get("api_key"))
	assert.NotContains(t, stdout, "Note")
	assert.NotContains(t, stdout, "\n")
}

func TestEncryptDecrypt(t *testing.T) {
	token, err := run(t, "encrypt", "--key", "txt1XPdoxL4YVMgnJiFkY6xxGE", "ABC123", "secretXYZ")
	require.NoError(t, err)
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")

	plain, err := run(t, "decrypt", "--key", "txt1XPdoxL4YVMgnJiFkY6xxGE", token)
	require.NoError(t, err)
	assert.Equal(t, "ABC123|secretXYZ", plain)
}

func TestDecrypt_WrongKey(t *testing.T) {
	token, err := run(t, "encrypt", "--key", "first-key", "ABC123", "secretXYZ")
	require.NoError(t, err)

	_, err = run(t, "decrypt", "--key", "second-key", token)
	assert.Error(t, err)
}

func TestBuildRequests(t *testing.T) {
	fetchExchange, fetchSymbol = "MCX", "GOLDM"
	fetchIntervals = []string{"5H", "1D"}
	fetchDays = 10
	defer func() { fetchContracts = false }()

	fetchContracts = false
	reqs := buildRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "GOLDM", reqs[0].Symbol)
	assert.Equal(t, "1D", reqs[1].Interval)
	assert.Equal(t, 10, reqs[1].Days)

	fetchContracts = true
	reqs = buildRequests()
	require.Len(t, reqs, 6)
	symbols := map[string]bool{}
	for _, r := range reqs {
		symbols[r.Symbol] = true
	}
	assert.Equal(t, map[string]bool{"GOLDM": true, "GOLDM1": true, "GOLDM2": true}, symbols)
}
