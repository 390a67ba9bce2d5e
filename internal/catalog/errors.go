package catalog

import "fmt"

// Typed errors surfaced by the catalog layer. Nothing below this taxonomy
// (transport errors, provider payloads) crosses the package boundary.

// AuthError: the provider rejected our credentials (401/403). A server-side
// configuration problem, never the caller's fault.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string { return "catalog authentication failed: " + e.Detail }

// NotFoundError: the provider has no such resource.
type NotFoundError struct {
	SetNo string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("set %q not in catalog", e.SetNo) }

// RateLimitError: still throttled after retries were exhausted.
type RateLimitError struct {
	Detail string
}

func (e *RateLimitError) Error() string { return "catalog rate limit exceeded: " + e.Detail }

// TimeoutError: the provider did not answer within the deadline, retries
// included.
type TimeoutError struct {
	Detail string
}

func (e *TimeoutError) Error() string { return "catalog request timed out: " + e.Detail }

// APIError: any other provider failure (5xx, connection refused, malformed
// body). Detail is our own description, never the raw provider payload.
type APIError struct {
	Detail string
}

func (e *APIError) Error() string { return "catalog API error: " + e.Detail }
