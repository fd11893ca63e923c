package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// transientMarkers are substrings of error text that indicate a retryable
// condition when the underlying client does not expose a typed error.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"too many requests",
	"rate limit",
	"status code: 429",
	"status code: 500",
	"status code: 502",
	"status code: 503",
	"status code: 504",
	"unavailable",
	"code = resourceexhausted",
	"code = deadlineexceeded",
	"code = aborted",
}

// Classify wraps err with the taxonomy sentinel that describes it.
// Errors that already carry ErrTransient, ErrPermanent or ErrCancelled are
// returned unchanged. Unknown errors default to ErrPermanent.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrPermanent) || errors.Is(err, ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	msg := strings.ToLower(err.Error())
	// Clients that flatten a dropped connection into text end with it.
	if msg == "eof" || strings.HasSuffix(msg, ": eof") || strings.HasSuffix(msg, ": unexpected eof") {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsRetryable reports whether err is classified as transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ClassOf returns the error class to record on a FAILED document.
func ClassOf(err error) ErrorClass {
	if errors.Is(err, ErrTransient) {
		return ClassTransient
	}
	return ClassPermanent
}
