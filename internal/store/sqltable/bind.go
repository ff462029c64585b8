package sqltable

import (
	"strconv"
	"strings"
)

// Placeholder styles.
const (
	bindQuestion = iota
	bindDollar
)

func bindType(driverName string) int {
	switch driverName {
	case "postgres", "pgx":
		return bindDollar
	default:
		return bindQuestion
	}
}

// rebind rewrites "?" placeholders into the driver's style. Queries built by
// this package never contain a literal "?".
func rebind(bt int, query string) string {
	if bt != bindDollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for {
		i := strings.IndexByte(query, '?')
		if i < 0 {
			break
		}
		n++
		b.WriteString(query[:i])
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
		query = query[i+1:]
	}
	b.WriteString(query)
	return b.String()
}

// quoteIdent quotes a table or column name for both SQLite and PostgreSQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
