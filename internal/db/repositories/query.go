// query.go holds the shared squirrel statement builder and sentinel errors used by the
// repositories in this package.
package repositories

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
)

// ErrNotFound is returned by mutators whose target row does not exist (or is not
// owned by the caller).
var ErrNotFound = errors.New("record not found")

// psql builds PostgreSQL statements with $n placeholders
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// clampPage normalizes pagination arguments.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
