package domain

import (
	"fmt"
	"time"

	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
)

// SearchFilter is a closed predicate for similarity queries. Every field is
// optional; the zero value matches everything. Being an explicit record
// rather than an open map, it can be validated before any query executes.
type SearchFilter struct {
	DateFrom       *time.Time
	DateTo         *time.Time
	Counselors     []string
	MinSuccessRate *float32
}

// IsZero reports whether no constraint is set.
func (f SearchFilter) IsZero() bool {
	return f.DateFrom == nil && f.DateTo == nil && len(f.Counselors) == 0 && f.MinSuccessRate == nil
}

// Validate rejects invalid combinations before a query runs.
func (f SearchFilter) Validate() error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return fmt.Errorf("%w: date_to %s before date_from %s",
			apperrors.ErrInvalidFilter, f.DateTo.Format(time.RFC3339), f.DateFrom.Format(time.RFC3339))
	}

	if f.MinSuccessRate != nil && (*f.MinSuccessRate < 0 || *f.MinSuccessRate > 1) {
		return fmt.Errorf("%w: min_success_rate %.2f outside [0,1]", apperrors.ErrInvalidFilter, *f.MinSuccessRate)
	}

	for _, c := range f.Counselors {
		if c == "" {
			return fmt.Errorf("%w: empty counselor name", apperrors.ErrInvalidFilter)
		}
	}

	return nil
}
