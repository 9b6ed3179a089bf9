package postgres

import (
	"strings"

	"github.com/lib/pq"
)

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal the spec's Conflict kind maps onto for
// duplicate emails and (defensively) duplicate project keys.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if ok := asPQError(err, &pqErr); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value")
}

func asPQError(err error, target **pq.Error) bool {
	for err != nil {
		if e, ok := err.(*pq.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
