package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors classifying crawl failures. Callers match with errors.Is;
// nothing below the orchestrator turns these into a run abort.
var (
	// ErrNetwork marks transport-level failures: timeouts, refused or reset
	// connections, DNS errors. Retryable with a fixed delay.
	ErrNetwork = errors.New("network failure")

	// ErrRateLimited marks an HTTP 429. Retryable with linear backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrHTTPStatus marks any other non-2xx response. Not retryable.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrNoData means the page carried no usable embedded state.
	ErrNoData = errors.New("no embedded state")

	// ErrParse marks an embedded payload that was found but did not parse.
	ErrParse = errors.New("payload parse failure")

	// ErrValidation marks a record rejected by the acceptance gate.
	ErrValidation = errors.New("record rejected")

	// ErrPersistence marks a failed CSV or checkpoint write.
	ErrPersistence = errors.New("persistence failure")

	// ErrQueueClosed signals that the work queue has been drained and closed;
	// the crawl loop treats it as the end of the run.
	ErrQueueClosed = errors.New("queue closed")
)

// StatusError carries the status code of a terminal HTTP response. It unwraps
// to ErrRateLimited for 429 and ErrHTTPStatus otherwise.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrHTTPStatus
}

// HTTPStatus extracts the status code from an error chain, or 0.
func HTTPStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
