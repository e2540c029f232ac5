// Package backstop provides composable error-recovery patterns for Go
// applications: retry with jittered backoff, a circuit breaker, timeout
// racing, stale-cache fallback, graceful degradation, batch retry, and a
// central error handler built on a typed error taxonomy.
//
// The central type is Policy[T], which wraps function calls with the
// patterns above. Policies automatically report health status for
// Kubernetes readiness probes.
package backstop
