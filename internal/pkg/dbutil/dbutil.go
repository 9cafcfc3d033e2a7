package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry query ("?" placeholders, mysql style LIMIT a,b)
// into a postgres query.
func Finalize(query string, args []interface{}) (string, []interface{}) {
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

func IsConflict(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// VectorOrNull maps an absent embedding to SQL NULL.
func VectorOrNull(values []float32) interface{} {
	if len(values) == 0 {
		return nil
	}
	return pgvector.NewVector(values)
}
