package fields

import (
	"database/sql"
	"regexp"
	"strconv"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// sqliteDriverName is go-sqlite3 with the regexp and casefold functions
// registered on every connection.
const sqliteDriverName = "sqlite3_bibsearch"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("regexp", sqliteRegexp, true); err != nil {
				return err
			}
			return conn.RegisterFunc("casefold", foldCase, true)
		},
	})
}

var regexCache sync.Map // pattern -> *regexp.Regexp

// sqliteRegexp backs "value REGEXP pattern", which SQLite calls as
// regexp(pattern, value).
func sqliteRegexp(pattern, value string) (bool, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(value), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	regexCache.Store(pattern, re)
	return re.MatchString(value), nil
}

func foldCase(s string) string {
	return cases.Fold().String(s)
}

// dialect isolates the SQL that differs between SQLite and Postgres.
type dialect interface {
	name() string
	// rebind rewrites ? placeholders into the dialect's form.
	rebind(query string) string
	// foldExpr wraps a column so LIKE comparisons ignore case.
	foldExpr(col string) string
	// foldValue folds a Go-side value the same way foldExpr folds the column.
	foldValue(s string) string
	// regexClause returns a case-insensitive regex match on col and the
	// pattern argument to bind.
	regexClause(col, pattern string) (string, string)
}

type sqliteDialect struct{}

func (sqliteDialect) name() string            { return "sqlite" }
func (sqliteDialect) rebind(q string) string  { return q }
func (sqliteDialect) foldExpr(c string) string { return "casefold(" + c + ")" }
func (sqliteDialect) foldValue(s string) string {
	return foldCase(s)
}
func (sqliteDialect) regexClause(col, pattern string) (string, string) {
	return col + " REGEXP ?", "(?i)" + pattern
}

type postgresDialect struct{}

func (postgresDialect) name() string            { return "postgres" }
func (postgresDialect) foldExpr(c string) string { return "lower(" + c + ")" }
func (postgresDialect) foldValue(s string) string {
	return strings.ToLower(s)
}
func (postgresDialect) regexClause(col, pattern string) (string, string) {
	return col + " ~* ?", pattern
}

func (postgresDialect) rebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
