package upload

import (
	"net/http"
	"slices"

	"github.com/lwalthert/intuneapp/internal/blob"
)

// RetryPredicate reports whether a failed block upload should be attempted again.
type RetryPredicate func(err error) bool

// RetryOnStatus retries errors carrying one of the given HTTP statuses.
func RetryOnStatus(statuses ...int) RetryPredicate {
	allowed := slices.Clone(statuses)

	return func(err error) bool {
		status, ok := blob.StatusCode(err)

		return ok && slices.Contains(allowed, status)
	}
}

// DefaultRetryStatuses returns 307, 400 and 403. Storage answers with these
// transiently while a URI is being provisioned or rotated.
func DefaultRetryStatuses() []int {
	return []int{http.StatusTemporaryRedirect, http.StatusBadRequest, http.StatusForbidden}
}

// DefaultRetryPredicate retries DefaultRetryStatuses.
func DefaultRetryPredicate() RetryPredicate {
	return RetryOnStatus(DefaultRetryStatuses()...)
}
