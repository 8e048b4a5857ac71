package store

import (
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// dialect captures the differences between the supported SQL backends.
// Queries are written with "?" placeholders and rebound per dialect.
type dialect struct {
	name        string
	dollarBinds bool
	goose       goose.Dialect
}

var (
	sqliteDialect   = dialect{name: "sqlite", goose: goose.DialectSQLite3}
	postgresDialect = dialect{name: "postgres", dollarBinds: true, goose: goose.DialectPostgres}
)

// rebind rewrites "?" placeholders to "$1", "$2", ... for PostgreSQL.
// Queries in this package never contain a literal "?".
func (d dialect) rebind(query string) string {
	if !d.dollarBinds {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
