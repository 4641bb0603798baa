package fetch

import "errors"

// Transport error taxonomy. The retry policy dispatches on these tags via
// errors.Is rather than inspecting message text.
var (
	// ErrRateLimited covers HTTP 429 and the service's habit of returning
	// an HTML error page with a 2xx status when throttled.
	ErrRateLimited = errors.New("rate limited")
	// ErrHTTPStatus covers any other non-2xx response.
	ErrHTTPStatus = errors.New("http error")
	// ErrUnrecognizedPayload marks a download that is neither an archive
	// nor recognizable media. The bytes are preserved for inspection.
	ErrUnrecognizedPayload = errors.New("unrecognized payload")
)

// errorKind maps an error to the coarse tag recorded in the ledger.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrHTTPStatus):
		return "http"
	case errors.Is(err, ErrUnrecognizedPayload):
		return "content"
	default:
		return "io"
	}
}
