package googlefit

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched (errors.Is) by every credential validation failure.
var ErrConfiguration = errors.New("google fit credentials not configured")

// AuthError means the token endpoint rejected the refresh credential.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("google token exchange rejected (status %d): %s", e.Status, e.Body)
}

// ErrorKind discriminates aggregate failures so callers never have to
// inspect provider error text themselves.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	// KindBasalSourceUnavailable means the provider refused the request because
	// of the basal-rate data source (typically the account has no BMR data).
	KindBasalSourceUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindBasalSourceUnavailable:
		return "basal_source_unavailable"
	default:
		return "other"
	}
}

// AggregateError is a non-2xx answer from the aggregate endpoint.
// Body carries the provider's error payload when one was sent.
type AggregateError struct {
	Kind   ErrorKind
	Status int
	Body   string
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("google fit aggregate failed (status %d, %s): %s", e.Status, e.Kind, e.Body)
}

// IsBasalSourceUnavailable reports whether err is an aggregate failure caused
// by the basal-rate source.
func IsBasalSourceUnavailable(err error) bool {
	var aggErr *AggregateError
	return errors.As(err, &aggErr) && aggErr.Kind == KindBasalSourceUnavailable
}
