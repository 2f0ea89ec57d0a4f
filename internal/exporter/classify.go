package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
)

// StatusError is a non-2xx response from the site API.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Status)
}

// ErrBadShape marks a 2xx response whose body failed the structural shape
// check (expected pagination fields absent).
var ErrBadShape = errors.New("response shape invalid")

// Failure is a classified fetch outcome.
type Failure struct {
	Code      string
	Retryable bool
}

// ClassifyFailure maps a page-request error to a failure code and retry
// class:
//
//	thrown network error        -> NETWORK_ERROR, retryable
//	timeout/abort               -> TIMEOUT, retryable
//	cancellation                -> CANCELLED, never retryable
//	429, 403, 408, 5xx          -> HTTP_<status>, retryable
//	other non-2xx               -> HTTP_<status>, fatal
//	2xx with broken shape       -> BAD_RESPONSE, retryable
func ClassifyFailure(err error) *Failure {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &Failure{Code: follows.CodeCancelled, Retryable: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Code: follows.CodeTimeout, Retryable: true}
	}
	if errors.Is(err, ErrBadShape) {
		return &Failure{Code: follows.CodeBadResponse, Retryable: true}
	}

	var se *StatusError
	if errors.As(err, &se) {
		retryable := se.Status == 429 || se.Status == 403 || se.Status == 408 || se.Status >= 500
		return &Failure{Code: follows.HTTPCode(se.Status), Retryable: retryable}
	}

	return &Failure{Code: follows.CodeNetworkError, Retryable: true}
}

// fastRetryable reports whether the failure qualifies for the in-request
// retry layer (429 and server errors only; the page-level pause handles the
// rest).
func fastRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}

	return false
}
