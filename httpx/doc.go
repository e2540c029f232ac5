// Package httpx adapts net/http clients to backstop recovery policies,
// classifying HTTP status codes into the typed error taxonomy so that
// retry and circuit-breaker decisions follow API semantics rather than
// transport success.
package httpx
