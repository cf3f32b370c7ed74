// Package safety provides the two safety validation layers: a deterministic
// lexical check over statement text and an LLM-backed semantic judge that
// reasons about intent.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
)

// deniedKeywords are mutating, structural, and privilege-management verbs.
// A statement containing any of them as a whole word is rejected outright.
var deniedKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER",
	"TRUNCATE", "REPLACE", "CREATE", "GRANT", "REVOKE",
}

// Word-boundary match so identifiers that merely contain a denied keyword
// as a substring (e.g. a column named updated_at) do not trip the rule.
var deniedPattern = regexp.MustCompile(`\b(` + strings.Join(deniedKeywords, "|") + `)\b`)

// LexicalValidator rejects any statement containing a mutating or
// structurally dangerous construct, using only the statement text.
//
// The validator is pure and total: it never returns an error, performs no
// I/O, and runs in time linear in statement length. Case folding applies
// only to the comparison copy; the candidate text itself is never altered.
type LexicalValidator struct{}

// NewLexicalValidator creates a LexicalValidator.
func NewLexicalValidator() *LexicalValidator {
	return &LexicalValidator{}
}

// Validate applies the rules in order, short-circuiting on the first failure.
func (v *LexicalValidator) Validate(statement string) refine.Verdict {
	trimmed := strings.TrimSpace(statement)
	folded := strings.ToUpper(trimmed)

	if folded == "" {
		return refine.Reject(refine.VerdictOriginLexical,
			"read-only rule: statement is empty")
	}

	// Rule: must begin with SELECT; a single leading CTE introducer is fine.
	first := firstKeyword(folded)
	if first != "SELECT" && first != "WITH" {
		return refine.Reject(refine.VerdictOriginLexical,
			fmt.Sprintf("read-only rule: statement must begin with SELECT, found %q", first))
	}

	// Rule: denylisted keyword anywhere, whole-word match.
	if match := deniedPattern.FindString(folded); match != "" {
		return refine.Reject(refine.VerdictOriginLexical,
			fmt.Sprintf("keyword rule: prohibited keyword %s, only read-only SELECT statements are allowed", match))
	}

	// Rule: comment sequences outside string literals hide intent from
	// text-level review.
	if token := commentToken(trimmed); token != "" {
		return refine.Reject(refine.VerdictOriginLexical,
			fmt.Sprintf("comment rule: comment sequence %q is not allowed", token))
	}

	// Rule: a bare separator outside string literals followed by more
	// content means statement stacking.
	if stacked(trimmed) {
		return refine.Reject(refine.VerdictOriginLexical,
			"statement-stacking rule: multiple top-level statements are not allowed")
	}

	return refine.Approve(refine.VerdictOriginLexical)
}

// firstKeyword returns the first whitespace-delimited token of a folded
// statement, with any opening parenthesis stripped.
func firstKeyword(folded string) string {
	fields := strings.Fields(folded)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimLeft(fields[0], "(")
}

// commentToken scans for -- or /* outside string literals and returns the
// offending token, or "" if none is present.
func commentToken(statement string) string {
	var inSingle, inDouble bool
	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			// Literal content, keep scanning.
		case c == '-' && i+1 < len(statement) && statement[i+1] == '-':
			return "--"
		case c == '/' && i+1 < len(statement) && statement[i+1] == '*':
			return "/*"
		}
	}
	return ""
}

// stacked reports whether a semicolon outside string literals is followed by
// further statement content. A single trailing semicolon is allowed.
func stacked(statement string) bool {
	var inSingle, inDouble bool
	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == ';' && !inSingle && !inDouble:
			if strings.TrimSpace(statement[i+1:]) != "" {
				return true
			}
		}
	}
	return false
}
