package dashboard

import (
	"errors"
	"fmt"

	"github.com/codr1/transitdash/internal/query"
)

var (
	// ErrRepository matches every RepositoryError via errors.Is.
	ErrRepository      = errors.New("repository failure")
	ErrCompanyNotFound = errors.New("company not found")
)

// RepositoryError reports which read failed during a refresh. The previous
// snapshot for the scope is kept when a refresh returns one.
type RepositoryError struct {
	Entity query.Entity
	Op     string
	Err    error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func (e *RepositoryError) Is(target error) bool {
	return target == ErrRepository
}
