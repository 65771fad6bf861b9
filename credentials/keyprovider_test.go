package credentials

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const validHexKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEnvKeyProvider_GetKey(t *testing.T) {
	envVar := "TEST_OTTERMATCH_ENCRYPTION_KEY"

	tests := []struct {
		name    string
		value   string
		set     bool
		wantErr bool
	}{
		{name: "valid key", value: validHexKey, set: true},
		{name: "missing env var", set: false, wantErr: true},
		{name: "invalid hex", value: "not-valid-hex", set: true, wantErr: true},
		{name: "wrong length", value: "0123456789abcdef", set: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv(envVar, tt.value)
			} else {
				t.Setenv(envVar, "")
			}

			key, err := NewEnvKeyProvider(envVar).GetKey()
			if tt.wantErr {
				if err == nil {
					t.Fatal("GetKey() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("GetKey() error = %v", err)
			}
			want, _ := hex.DecodeString(validHexKey)
			if string(key) != string(want) {
				t.Error("GetKey() returned wrong key")
			}
		})
	}
}

func TestKeyProviders_Interface(t *testing.T) {
	providers := map[string]KeyProvider{
		"env":        NewEnvKeyProvider("TEST_KEY"),
		"passphrase": NewPassphraseKeyProvider("test", []byte("salt")),
		"keyring":    NewKeyringKeyProvider(),
	}
	for name, p := range providers {
		if p.Description() == "" {
			t.Errorf("%s: Description() should not be empty", name)
		}
	}

	if n := reflect.TypeOf((*KeyProvider)(nil)).Elem().NumMethod(); n != 2 {
		t.Errorf("KeyProvider has %d methods, want GetKey and Description only", n)
	}
}

func TestEnvKeyProvider_Description(t *testing.T) {
	desc := NewEnvKeyProvider("MY_CUSTOM_KEY").Description()
	if !strings.Contains(desc, "MY_CUSTOM_KEY") {
		t.Errorf("Description() = %q, should mention the variable", desc)
	}
}

func TestPassphraseKeyProvider_GetKey(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	otherSalt, _ := GenerateSalt()

	key, err := NewPassphraseKeyProvider("my-secure-passphrase", salt).GetKey()
	if err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}
	if len(key) != keyLength {
		t.Fatalf("GetKey() returned %d bytes, want %d", len(key), keyLength)
	}

	again, _ := NewPassphraseKeyProvider("my-secure-passphrase", salt).GetKey()
	if string(key) != string(again) {
		t.Error("same passphrase and salt should derive the same key")
	}

	salted, _ := NewPassphraseKeyProvider("my-secure-passphrase", otherSalt).GetKey()
	if string(key) == string(salted) {
		t.Error("different salts should derive different keys")
	}

	other, _ := NewPassphraseKeyProvider("another-passphrase", salt).GetKey()
	if string(key) == string(other) {
		t.Error("different passphrases should derive different keys")
	}

	if _, err := NewPassphraseKeyProvider("", salt).GetKey(); err == nil {
		t.Error("GetKey() expected error for empty passphrase")
	}
	if _, err := NewPassphraseKeyProvider("passphrase", nil).GetKey(); err == nil {
		t.Error("GetKey() expected error for empty salt")
	}
}

func TestPassphraseKeyProvider_Description(t *testing.T) {
	desc := NewPassphraseKeyProvider("test", []byte("salt")).Description()
	if !strings.Contains(desc, "Argon2") {
		t.Errorf("Description() = %q, should mention Argon2", desc)
	}
}

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	if len(salt1) != 16 {
		t.Errorf("GenerateSalt() returned %d bytes, want 16", len(salt1))
	}
	salt2, _ := GenerateSalt()
	if string(salt1) == string(salt2) {
		t.Error("GenerateSalt() should return unique values")
	}
}

func TestLoadOrCreateSalt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	first, err := LoadOrCreateSalt(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateSalt() error = %v", err)
	}
	second, err := LoadOrCreateSalt(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateSalt() second error = %v", err)
	}
	if string(first) != string(second) {
		t.Error("salt should be stable across calls")
	}

	if err := os.WriteFile(filepath.Join(dir, saltFile), []byte("zz"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreateSalt(dir); err == nil {
		t.Error("LoadOrCreateSalt() expected error for corrupt salt")
	}
}

func TestKeyringKeyProvider_Description(t *testing.T) {
	if NewKeyringKeyProvider().Description() == "" {
		t.Error("Description() should not be empty")
	}
}

// TestKeyringKeyProvider_Integration tests the keyring provider if available.
// This test is skipped in CI environments where keyring may not be available.
func TestKeyringKeyProvider_Integration(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("Skipping keyring test in CI environment")
	}

	provider := NewKeyringKeyProvider()
	key, err := provider.GetKey()
	if err != nil {
		t.Skipf("Keyring not available: %v", err)
	}
	if len(key) != keyLength {
		t.Errorf("GetKey() returned %d bytes, want %d", len(key), keyLength)
	}

	key2, err := provider.GetKey()
	if err != nil {
		t.Fatalf("Second GetKey() error = %v", err)
	}
	if string(key) != string(key2) {
		t.Error("GetKey() should return the same key on subsequent calls")
	}
}

func TestGetDefaultKeyProvider_WithEnvVar(t *testing.T) {
	t.Setenv(EnvEncryptionKey, validHexKey)
	t.Setenv(EnvPassphrase, "ignored")

	provider, err := GetDefaultKeyProvider()
	if err != nil {
		t.Fatalf("GetDefaultKeyProvider() error = %v", err)
	}
	if !strings.Contains(provider.Description(), EnvEncryptionKey) {
		t.Errorf("expected env provider, got: %s", provider.Description())
	}
}

func TestGetDefaultKeyProvider_WithPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OTTERMATCH_CONFIG_DIR", dir)
	t.Setenv(EnvEncryptionKey, "")
	t.Setenv(EnvPassphrase, "correct horse")

	provider, err := GetDefaultKeyProvider()
	if err != nil {
		t.Fatalf("GetDefaultKeyProvider() error = %v", err)
	}
	if !strings.Contains(provider.Description(), "Argon2") {
		t.Errorf("expected passphrase provider, got: %s", provider.Description())
	}
	if _, err := os.Stat(filepath.Join(dir, saltFile)); err != nil {
		t.Errorf("salt file not created: %v", err)
	}

	key1, _ := provider.GetKey()
	provider2, _ := GetDefaultKeyProvider()
	key2, _ := provider2.GetKey()
	if string(key1) != string(key2) {
		t.Error("passphrase provider should derive the same key across runs")
	}
}
