package sqlcheck

import (
	"regexp"
	"strings"

	enginerr "github.com/aisavvy/aisavvy/internal/errors"
	"github.com/aisavvy/aisavvy/internal/schema"
)

// forbiddenRe matches side-effecting keywords anywhere in the statement.
// The match is deliberately blunt: a read query has no business containing
// these words at all, so surrounding text does not rescue it.
var forbiddenRe = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE|COPY|VACUUM|MERGE|CALL|EXECUTE)\b`,
)

// keywords are SQL words and common functions that are not identifiers.
var keywords = map[string]bool{
	"select": true, "from": true, "where": true, "join": true, "inner": true,
	"left": true, "right": true, "full": true, "outer": true, "cross": true,
	"on": true, "using": true, "and": true, "or": true, "not": true,
	"as": true, "group": true, "by": true, "order": true, "having": true,
	"limit": true, "offset": true, "distinct": true, "asc": true, "desc": true,
	"like": true, "ilike": true, "in": true, "is": true, "null": true,
	"between": true, "case": true, "when": true, "then": true, "else": true,
	"end": true, "with": true, "recursive": true, "union": true,
	"intersect": true, "except": true,
	"all": true, "any": true, "exists": true, "true": true, "false": true,
	"nulls": true, "first": true, "last": true, "over": true, "partition": true,
	"rows": true, "range": true, "preceding": true, "following": true,
	"current": true, "row": true, "interval": true, "extract": true,
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"upper": true, "lower": true, "length": true, "trim": true, "substring": true,
	"coalesce": true, "nullif": true, "cast": true, "abs": true, "round": true,
	"now": true, "current_date": true, "current_timestamp": true, "date_trunc": true,
	"date_part": true, "to_char": true, "concat": true, "row_number": true,
	"rank": true, "dense_rank": true, "lag": true, "lead": true,
}

// Validate statically checks a statement against the schema snapshot, in
// order: statement type, identifier existence, then basic syntactic shape.
// It never executes the statement.
func Validate(stmt Statement, snap *schema.Snapshot) error {
	sqlText := strings.TrimSpace(stmt.SQL)
	if sqlText == "" {
		return enginerr.New(enginerr.KindNoSQLFound, "empty SQL statement")
	}

	if err := checkStatementType(sqlText); err != nil {
		return err
	}

	if err := checkIdentifiers(sqlText, snap); err != nil {
		return err
	}

	return checkSyntax(sqlText)
}

func checkStatementType(sqlText string) error {
	lower := strings.ToLower(sqlText)

	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return enginerr.New(enginerr.KindUnsafeStatement,
			"only SELECT statements are allowed")
	}

	if match := forbiddenRe.FindString(sqlText); match != "" {
		return enginerr.Newf(enginerr.KindUnsafeStatement,
			"statement contains forbidden keyword %s", strings.ToUpper(match))
	}

	// A single statement only: internal semicolons indicate stacking.
	if strings.Contains(sqlText, ";") {
		return enginerr.New(enginerr.KindUnsafeStatement,
			"only a single statement is allowed")
	}

	return nil
}

// checkIdentifiers verifies that every referenced table and column exists
// in the snapshot. Aliases introduced by FROM/JOIN clauses and AS are
// tracked so they are not reported as unknown.
func checkIdentifiers(sqlText string, snap *schema.Snapshot) error {
	stripped, ok := stripLiterals(sqlText)
	if !ok {
		// Unbalanced quotes make identifier analysis meaningless; the
		// syntax check owns this failure.
		return checkSyntax(sqlText)
	}

	words := tokenize(stripped)
	known := snap.Identifiers()
	aliases := collectAliases(words, known)

	for i, word := range words {
		prev := ""
		if i > 0 {
			prev = words[i-1].text
		}

		for _, part := range strings.Split(word.text, ".") {
			if part == "" || keywords[part] || isNumeric(part) {
				continue
			}

			if word.function && !strings.Contains(word.text, ".") {
				continue
			}

			if known[part] || aliases[part] {
				continue
			}

			// Tables must exist where a table is expected.
			if prev == "from" || prev == "join" {
				return enginerr.Newf(enginerr.KindUnknownIdentifier,
					"unknown table %q", part)
			}

			return enginerr.Newf(enginerr.KindUnknownIdentifier,
				"unknown identifier %q", part)
		}
	}

	return nil
}

func checkSyntax(sqlText string) error {
	if _, ok := stripLiterals(sqlText); !ok {
		return enginerr.New(enginerr.KindSyntaxError, "unbalanced string literal")
	}

	depth := 0

	for _, r := range sqlText {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return enginerr.New(enginerr.KindSyntaxError, "unbalanced parentheses")
			}
		}
	}

	if depth != 0 {
		return enginerr.New(enginerr.KindSyntaxError, "unbalanced parentheses")
	}

	return nil
}

// stripLiterals blanks out single-quoted string literals so their content
// is not mistaken for identifiers. Returns false on an unterminated
// literal.
func stripLiterals(sqlText string) (string, bool) {
	var sb strings.Builder

	inLiteral := false

	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\'' {
			// Doubled quote inside a literal is an escaped quote.
			if inLiteral && i+1 < len(runes) && runes[i+1] == '\'' {
				i++
				continue
			}

			inLiteral = !inLiteral

			sb.WriteRune(' ')

			continue
		}

		if inLiteral {
			sb.WriteRune(' ')
		} else {
			sb.WriteRune(r)
		}
	}

	return sb.String(), !inLiteral
}

type token struct {
	text     string
	function bool // immediately followed by an opening parenthesis
}

var tokenRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*|\d+(?:\.\d+)?`)

func tokenize(sqlText string) []token {
	lower := strings.ToLower(sqlText)
	locs := tokenRe.FindAllStringIndex(lower, -1)

	tokens := make([]token, 0, len(locs))

	for _, loc := range locs {
		text := lower[loc[0]:loc[1]]

		rest := strings.TrimLeft(lower[loc[1]:], " \t\r\n")
		isFunc := strings.HasPrefix(rest, "(")

		tokens = append(tokens, token{text: text, function: isFunc})
	}

	return tokens
}

// collectAliases gathers table aliases ("FROM employees e") and output
// aliases ("AS total") in a first pass so references to them validate.
func collectAliases(words []token, known map[string]bool) map[string]bool {
	aliases := make(map[string]bool)

	for i, word := range words {
		// CTE names: "WITH name AS (...)", ", name AS (...)". The AS must
		// open a parenthesized body; "bogus AS x" is an output alias whose
		// source still has to exist.
		if i+1 < len(words) && words[i+1].text == "as" && words[i+1].function &&
			!keywords[word.text] && !strings.Contains(word.text, ".") {
			aliases[word.text] = true
		}

		if i == 0 {
			continue
		}

		prev := words[i-1].text

		if prev == "with" && !keywords[word.text] {
			aliases[word.text] = true
			continue
		}

		if prev == "as" && !keywords[word.text] {
			aliases[word.text] = true
			continue
		}

		// "FROM <table> <alias>" without AS.
		if i >= 2 && !keywords[word.text] && !strings.Contains(word.text, ".") {
			beforePrev := words[i-2].text
			if (beforePrev == "from" || beforePrev == "join") && known[prev] {
				aliases[word.text] = true
			}
		}
	}

	return aliases
}

func isNumeric(word string) bool {
	for _, r := range word {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}

	return len(word) > 0
}
