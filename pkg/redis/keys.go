package redis

import "strings"

const keyNamespace = "mm"

// Every key the storefront writes is "mm:<family>:<parts...>".
const (
	familyIdempotency  = "idempotency"
	familyRateLimit    = "rate_limit"
	familySession      = "session"
	familyVerification = "verify_email"
	familyLock         = "lock"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(familyRateLimit, scope)
}

// AccessSessionKey holds the session record for an access token id.
func (c *Client) AccessSessionKey(accessID string) string {
	return buildKey(familySession, "access", accessID)
}

// VerificationKey holds the user id a pending email verification token
// redeems for.
func (c *Client) VerificationKey(token string) string {
	return buildKey(familyVerification, token)
}

func (c *Client) LockKey(name string) string {
	return buildKey(familyLock, name)
}

// buildKey joins non-blank parts under the namespace.
func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
