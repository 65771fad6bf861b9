package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/ottermatch/config"
	"github.com/otherjamesbrown/ottermatch/credentials"
	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// setupCredentialEnv points the credential store at a temp dir with a fixed
// encryption key and no API key in the environment.
func setupCredentialEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OTTERMATCH_CONFIG_DIR", dir)
	t.Setenv(credentials.EnvEncryptionKey, testEncryptionKey)
	t.Setenv(credentials.EnvAPIKey, "")
	return dir
}

func newAuthHarness(t *testing.T, lister *fakeLister) (*AuthCommandDeps, *bytes.Buffer) {
	t.Helper()
	setupCredentialEnv(t)
	var out bytes.Buffer
	return &AuthCommandDeps{
		LoadConfig: loaderFor(testConfig()),
		NewLogger:  nopLogger,
		NewStore:   credentials.NewStore,
		NewClient:  lister.factory(),
		ReadSecret: func(string) (string, error) { return "prompted-key-123", nil },
		Stdout:     &out,
	}, &out
}

func storedKey(t *testing.T) string {
	t.Helper()
	store, err := credentials.NewStore()
	require.NoError(t, err)
	creds, err := store.Load()
	require.NoError(t, err)
	return creds.APIKey
}

func TestAuthCommand_Subcommands(t *testing.T) {
	cmd := NewAuthCommand(DefaultAuthDeps(loaderFor(testConfig())))
	assert.Equal(t, "auth", cmd.Use)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["login"])
	assert.True(t, names["logout"])
	assert.True(t, names["status"])

	login, _, err := cmd.Find([]string{"login"})
	require.NoError(t, err)
	for _, flag := range []string{"api-key", "non-interactive", "verify"} {
		assert.NotNil(t, login.Flags().Lookup(flag), "login should have --%s", flag)
	}
}

func TestRunLogin_FromFlag(t *testing.T) {
	deps, out := newAuthHarness(t, &fakeLister{})

	require.NoError(t, runLogin(context.Background(), deps, loginFlags{apiKey: "flag-key-12345"}))
	assert.Equal(t, "flag-key-12345", storedKey(t))
	assert.Contains(t, out.String(), "Login successful!")
	assert.NotContains(t, out.String(), "flag-key-12345")
}

func TestRunLogin_FromEnv(t *testing.T) {
	deps, out := newAuthHarness(t, &fakeLister{})
	t.Setenv(credentials.EnvAPIKey, "env-key-12345")

	require.NoError(t, runLogin(context.Background(), deps, loginFlags{nonInteractive: true}))
	assert.Equal(t, "env-key-12345", storedKey(t))
	assert.Contains(t, out.String(), "FATHOM_API_KEY")
}

func TestRunLogin_Prompt(t *testing.T) {
	deps, _ := newAuthHarness(t, &fakeLister{})

	require.NoError(t, runLogin(context.Background(), deps, loginFlags{}))
	assert.Equal(t, "prompted-key-123", storedKey(t))
}

func TestRunLogin_NonInteractiveWithoutKey(t *testing.T) {
	deps, _ := newAuthHarness(t, &fakeLister{})
	deps.ReadSecret = func(string) (string, error) {
		t.Fatal("should not prompt")
		return "", nil
	}

	err := runLogin(context.Background(), deps, loginFlags{nonInteractive: true})
	assert.ErrorIs(t, err, pferrors.ErrUnauthorized)
}

func TestRunLogin_RejectsBadKeys(t *testing.T) {
	deps, _ := newAuthHarness(t, &fakeLister{})

	for _, key := range []string{"short", "has space in it"} {
		err := runLogin(context.Background(), deps, loginFlags{apiKey: key})
		assert.Error(t, err, "key %q", key)
	}
	store, err := credentials.NewStore()
	require.NoError(t, err)
	assert.False(t, store.Exists())
}

func TestRunLogin_Verify(t *testing.T) {
	lister := &fakeLister{}
	deps, out := newAuthHarness(t, lister)

	require.NoError(t, runLogin(context.Background(), deps, loginFlags{apiKey: "verified-key-1", verify: true}))
	assert.Equal(t, "verified-key-1", lister.apiKey)
	require.Len(t, lister.opts, 1)
	assert.Equal(t, 1, lister.opts[0].Limit)
	assert.Contains(t, out.String(), "API key verified.")
}

func TestRunLogin_VerifyFailureDoesNotStore(t *testing.T) {
	lister := &fakeLister{err: pferrors.ErrUnauthorized}
	deps, _ := newAuthHarness(t, lister)

	err := runLogin(context.Background(), deps, loginFlags{apiKey: "rejected-key-1", verify: true})
	assert.ErrorIs(t, err, pferrors.ErrUnauthorized)

	store, err := credentials.NewStore()
	require.NoError(t, err)
	assert.False(t, store.Exists())
}

func TestRunLogout(t *testing.T) {
	deps, out := newAuthHarness(t, &fakeLister{})

	require.NoError(t, runLogout(deps))
	assert.Contains(t, out.String(), "No stored credentials found.")

	require.NoError(t, runLogin(context.Background(), deps, loginFlags{apiKey: "logout-key-123"}))
	out.Reset()
	require.NoError(t, runLogout(deps))
	assert.Contains(t, out.String(), "Logged out successfully.")

	store, err := credentials.NewStore()
	require.NoError(t, err)
	assert.False(t, store.Exists())
}

func TestRunAuthStatus(t *testing.T) {
	deps, out := newAuthHarness(t, &fakeLister{})

	require.NoError(t, runAuthStatus(deps))
	assert.Contains(t, out.String(), "Not authenticated")

	require.NoError(t, runLogin(context.Background(), deps, loginFlags{apiKey: "status-key-123"}))
	out.Reset()
	require.NoError(t, runAuthStatus(deps))
	assert.Contains(t, out.String(), "Source: stored")
	assert.NotContains(t, out.String(), "status-key-123")

	t.Setenv(credentials.EnvAPIKey, "env-status-key")
	cfg := testConfig()
	cfg.OutputFormat = config.OutputFormatJSON
	deps.LoadConfig = loaderFor(cfg)
	out.Reset()
	require.NoError(t, runAuthStatus(deps))

	var status authStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, "env", status.Source)
	assert.Equal(t, credentials.GenerateAPIKeyID("env-status-key"), status.KeyID)
	assert.True(t, strings.HasSuffix(status.APIKey, "..."))
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"", true},
		{"1234567", true},
		{"12345678", false},
		{"abc def ghi", true},
		{"fk_live_abcdefgh", false},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			err := validateAPIKey(tc.key)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
