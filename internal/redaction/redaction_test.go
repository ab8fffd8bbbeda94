package redaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensitiveEnvName(t *testing.T) {
	sensitive := []string{"API_KEY", "FILES_API_TOKEN", "db_password", "GITHUB_TOKEN", "AUTH_HEADER", "SESSION_COOKIE"}
	for _, name := range sensitive {
		assert.True(t, SensitiveEnvName(name), "expected %q to be sensitive", name)
	}

	benign := []string{"PATH", "HOME", "LOG_LEVEL", "MAX_CONNECTIONS", ""}
	for _, name := range benign {
		assert.False(t, SensitiveEnvName(name), "expected %q to be benign", name)
	}
}

func TestSecretLikeValue(t *testing.T) {
	assert.True(t, SecretLikeValue("Bearer abc123"))
	assert.True(t, SecretLikeValue("sk-proj-abcdef"))
	assert.True(t, SecretLikeValue("ghp_0123456789abcdef"))
	assert.True(t, SecretLikeValue("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")) // long opaque string
	assert.False(t, SecretLikeValue("run the weather tool"))
	assert.False(t, SecretLikeValue("/usr/local/bin"))
	assert.False(t, SecretLikeValue(""))
}

func TestRedactEnv(t *testing.T) {
	env := map[string]string{
		"API_KEY":    "secret-value",
		"LOG_LEVEL":  "debug",
		"WORKDIR":    "sk-looks-like-a-key", // benign name, secret-shaped value
		"AUTH_TOKEN": "",
	}
	out := RedactEnv(env)
	assert.Equal(t, Placeholder, out["API_KEY"])
	assert.Equal(t, "debug", out["LOG_LEVEL"])
	assert.Equal(t, Placeholder, out["WORKDIR"])
	assert.Equal(t, "", out["AUTH_TOKEN"], "empty values have nothing to hide")
	// original untouched
	assert.Equal(t, "secret-value", env["API_KEY"])

	assert.Nil(t, RedactEnv(nil))
}

func TestRedactorReplacesSecrets(t *testing.T) {
	r := NewRedactor("sk-live-1234567890", "")
	msg := "401 unauthorized: key sk-live-1234567890 rejected"
	got := r.Redact(msg)
	assert.NotContains(t, got, "sk-live-1234567890")
	assert.Contains(t, got, Placeholder)
}

func TestRedactorShortSecretIgnored(t *testing.T) {
	r := NewRedactor("abc")
	assert.Equal(t, "abc def", r.Redact("abc def"))
}

func TestRedactorNilSafe(t *testing.T) {
	var r *Redactor
	assert.Equal(t, "text", r.Redact("text"))
}
