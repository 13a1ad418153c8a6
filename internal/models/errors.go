package models

import "errors"

// Error taxonomy for the pipeline. Callers match with errors.Is; components
// wrap these with domain/query context via fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidDomain means a domain name failed validation (empty, too
	// long, or containing characters outside [a-z0-9_]).
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrNoDomainsConfigured means routing was attempted with an empty
	// domain registry. Misconfiguration, fatal to the call.
	ErrNoDomainsConfigured = errors.New("no domains configured")

	// ErrUnknownDomain means a well-formed domain name is not registered.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrEmbeddingFailure means the embedding provider responded with an
	// error. During ingestion the remaining batch is aborted; partial
	// progress already committed is preserved.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrGenerationFailure means the generative provider responded with an
	// error. Fatal for the query; not retried silently.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrGenerationUnavailable means no generative model is configured.
	// Recognized degraded mode: retrieved context is returned instead.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrTimeout means an external capability did not respond within the
	// caller's deadline, as opposed to responding with an error.
	ErrTimeout = errors.New("timeout")
)

// kindOrder is checked in order; ErrTimeout first so a timeout wrapped
// alongside a provider error reports as a timeout.
var kindOrder = []struct {
	err  error
	kind string
}{
	{ErrTimeout, "timeout"},
	{ErrInvalidDomain, "invalid_domain"},
	{ErrNoDomainsConfigured, "no_domains_configured"},
	{ErrUnknownDomain, "unknown_domain"},
	{ErrEmbeddingFailure, "embedding_failure"},
	{ErrGenerationUnavailable, "generation_unavailable"},
	{ErrGenerationFailure, "generation_failure"},
}

// ErrorKind maps err to a short stable kind string for API and CLI surfaces.
// Unrecognized errors report as "internal".
func ErrorKind(err error) string {
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
