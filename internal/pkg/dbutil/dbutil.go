package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize converts a gendry "?" query into postgres form. gendry renders
// pagination as "LIMIT offset, count" and quotes identifiers with backticks;
// postgres wants "LIMIT count OFFSET offset" and double quotes.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	query = strings.ReplaceAll(query, "`", `"`)
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func pgCode(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code)
	}
	return ""
}

func IsConflict(err error) bool {
	return pgCode(err) == "23505"
}

func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == "23503"
}

// IsUndefinedObject matches a missing function, table or extension.
func IsUndefinedObject(err error) bool {
	switch pgCode(err) {
	case "42883", "42P01", "42704":
		return true
	}
	return false
}
