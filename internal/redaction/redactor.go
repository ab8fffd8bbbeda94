// Package redaction keeps secret material out of anything the service sends
// to a client: stream events pass through a Redactor built from the secrets
// the config actually holds, and server env maps are sanitized by name and
// value heuristics before status reporting.
package redaction

import "strings"

const Placeholder = "[REDACTED]"

// Redactor strips known caller-supplied secret values (API keys, tokens) from
// text before it leaves the system. It is applied at the boundary nearest the
// caller and never assumes upstream code already redacted anything.
type Redactor struct {
	replacer *strings.Replacer
}

// NewRedactor builds a Redactor for the given secret values. Empty and very
// short values are ignored so common substrings are not mangled.
func NewRedactor(secrets ...string) *Redactor {
	pairs := make([]string, 0, len(secrets)*2)
	for _, secret := range secrets {
		if len(strings.TrimSpace(secret)) < 6 {
			continue
		}
		pairs = append(pairs, secret, Placeholder)
	}
	if len(pairs) == 0 {
		return &Redactor{}
	}
	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// Redact returns s with every known secret value replaced by the placeholder.
func (r *Redactor) Redact(s string) string {
	if r == nil || r.replacer == nil || s == "" {
		return s
	}
	return r.replacer.Replace(s)
}

// secretNameFragments match environment variable names that carry
// credentials. Names are compared upper-cased, the convention env maps in the
// server config follow.
var secretNameFragments = []string{
	"TOKEN", "SECRET", "PASSWORD", "PASSWD", "CREDENTIAL",
	"API_KEY", "APIKEY", "PRIVATE_KEY", "AUTH", "COOKIE",
}

// secretValuePrefixes match well-known credential formats regardless of the
// variable's name.
var secretValuePrefixes = []string{
	"sk-", "ghp_", "xoxb-", "xoxp-", "bearer ", "-----begin",
}

// SensitiveEnvName reports whether an environment variable name suggests its
// value is a credential.
func SensitiveEnvName(name string) bool {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return false
	}
	for _, fragment := range secretNameFragments {
		if strings.Contains(upper, fragment) {
			return true
		}
	}
	return false
}

// SecretLikeValue reports whether a value looks like credential material on
// its own: a known token format, or a long opaque blob.
func SecretLikeValue(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range secretValuePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return len(trimmed) >= 32 && !strings.ContainsAny(trimmed, " \n\t")
}

// RedactEnv clones env with every credential-looking entry replaced by the
// placeholder. Values survive only when both the name and the value look
// harmless.
func RedactEnv(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for name, value := range env {
		if value != "" && (SensitiveEnvName(name) || SecretLikeValue(value)) {
			out[name] = Placeholder
			continue
		}
		out[name] = value
	}
	return out
}
