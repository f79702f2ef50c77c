// Package sqlcheck turns raw model output into a vetted SQL statement.
// Extraction tolerates the fencing and chatter models wrap around SQL;
// validation is purely static analysis against the schema snapshot and
// never touches the database.
package sqlcheck

import (
	"regexp"
	"strings"

	enginerr "github.com/aisavvy/aisavvy/internal/errors"
)

// Statement is a candidate SQL statement extracted from model output.
type Statement struct {
	SQL string
}

var fenceRe = regexp.MustCompile("(?s)```(?:sql|SQL|postgresql)?\\s*(.*?)\\s*```")

// Extract locates the SQL statement in raw model output. It handles
// markdown fences, leading chatter and trailing semicolons. It fails with
// no_sql_found when nothing that starts like a read query is present.
func Extract(raw string) (Statement, error) {
	text := strings.TrimSpace(raw)

	if match := fenceRe.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	// Models sometimes echo the prompt's trailing header.
	for _, prefix := range []string{"SQL Query:", "SQL:", "Query:"} {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}

	// Skip any preamble before the first read-query keyword.
	if idx := firstQueryIndex(text); idx > 0 {
		text = text[idx:]
	} else if idx < 0 {
		return Statement{}, enginerr.New(enginerr.KindNoSQLFound,
			"no recognizable SQL statement in model output")
	}

	text = strings.TrimSpace(text)
	for strings.HasSuffix(text, ";") {
		text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	}

	if text == "" {
		return Statement{}, enginerr.New(enginerr.KindNoSQLFound,
			"model output contained no SQL after extraction")
	}

	return Statement{SQL: text}, nil
}

// A bare "with" appears constantly in model chatter ("a query with …"),
// so the WITH form must look like a CTE head: WITH [RECURSIVE] name AS.
var queryStartRe = regexp.MustCompile(
	`(?i)\bSELECT\b|\bWITH\s+(?:RECURSIVE\s+)?[A-Za-z_][A-Za-z0-9_]*\s+AS\b`,
)

// firstQueryIndex returns the byte offset of the first SELECT or CTE
// start, or -1 when none exists.
func firstQueryIndex(text string) int {
	loc := queryStartRe.FindStringIndex(text)
	if loc == nil {
		return -1
	}

	return loc[0]
}
