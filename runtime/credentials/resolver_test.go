package credentials

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearDefaultEnv(t *testing.T) {
	t.Helper()
	for _, v := range DefaultEnvVars {
		t.Setenv(v, "")
	}
}

func TestResolve_ExplicitAPIKey(t *testing.T) {
	cred, err := Resolve(ResolverConfig{APIKey: "sk-test-key"})
	require.NoError(t, err)
	assert.Equal(t, "api_key", cred.Type())
	assert.Equal(t, "sk-test-key", cred.APIKey())
}

func TestResolve_CredentialFile(t *testing.T) {
	tmpDir := t.TempDir()
	credFile := filepath.Join(tmpDir, "api_key.txt")
	require.NoError(t, os.WriteFile(credFile, []byte("sk-file-key\n"), 0o600))

	cred, err := Resolve(ResolverConfig{KeyFile: credFile})
	require.NoError(t, err)
	assert.Equal(t, "sk-file-key", cred.APIKey())
}

func TestResolve_CredentialFile_RelativePath(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "key.txt"), []byte("  sk-relative  "), 0o600))

	cred, err := Resolve(ResolverConfig{KeyFile: "key.txt", ConfigDir: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, "sk-relative", cred.APIKey())
}

func TestResolve_CredentialFile_NotFound(t *testing.T) {
	_, err := Resolve(ResolverConfig{KeyFile: "/nonexistent/key.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read credential file")
}

func TestResolve_CredentialEnv(t *testing.T) {
	clearDefaultEnv(t)
	t.Setenv("TEST_VOICEKIT_API_KEY", "sk-env-key")

	cred, err := Resolve(ResolverConfig{KeyEnv: "TEST_VOICEKIT_API_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "sk-env-key", cred.APIKey())
}

func TestResolve_FallbackDefaultEnvVar(t *testing.T) {
	clearDefaultEnv(t)
	t.Setenv("OPENAI_TOKEN", "sk-fallback")

	cred, err := Resolve(ResolverConfig{KeyEnv: "TEST_VOICEKIT_UNSET"})
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cred.APIKey())
}

func TestResolve_NoCredential(t *testing.T) {
	clearDefaultEnv(t)
	_, err := Resolve(ResolverConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Panics(t, func() { MustResolve(ResolverConfig{}) })
}

func TestResolve_PriorityOrder(t *testing.T) {
	tmpDir := t.TempDir()
	credFile := filepath.Join(tmpDir, "key.txt")
	require.NoError(t, os.WriteFile(credFile, []byte("sk-file"), 0o600))
	t.Setenv("TEST_VOICEKIT_PRIORITY", "sk-env")
	t.Setenv("OPENAI_API_KEY", "sk-default")

	tests := []struct {
		name string
		cfg  ResolverConfig
		want string
	}{
		{"explicit wins", ResolverConfig{APIKey: "sk-explicit", KeyFile: credFile, KeyEnv: "TEST_VOICEKIT_PRIORITY"}, "sk-explicit"},
		{"file before env", ResolverConfig{KeyFile: credFile, KeyEnv: "TEST_VOICEKIT_PRIORITY"}, "sk-file"},
		{"env before default", ResolverConfig{KeyEnv: "TEST_VOICEKIT_PRIORITY"}, "sk-env"},
		{"default", ResolverConfig{}, "sk-default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := Resolve(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cred.APIKey())
		})
	}
}

func TestAPIKeyCredential_Apply(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, NewAPIKeyCredential("sk-test").Apply(context.Background(), req))
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

	req, _ = http.NewRequest(http.MethodPost, "https://example.com", nil)
	cred := NewAPIKeyCredential("k", WithHeaderName("X-API-Key"), WithPrefix(""))
	require.NoError(t, cred.Apply(context.Background(), req))
	assert.Equal(t, "k", req.Header.Get("X-API-Key"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := Token{Value: "ek_abc", ExpiresAt: now.Add(time.Minute)}
	assert.False(t, tok.Expired(now))
	assert.True(t, tok.Expired(now.Add(time.Minute)))
	assert.False(t, Token{Value: "x"}.Expired(now))

	req, _ := http.NewRequest(http.MethodPost, "https://example.com", nil)
	require.NoError(t, tok.Apply(context.Background(), req))
	assert.Equal(t, "Bearer ek_abc", req.Header.Get("Authorization"))
	assert.Equal(t, "ephemeral", tok.Type())

	var noop NoOpCredential
	assert.Equal(t, "none", noop.Type())
	assert.NoError(t, noop.Apply(context.Background(), req))
}
