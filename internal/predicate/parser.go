package predicate

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads the canonical "field op value and field op value ..." form
// produced by Canonical, or supplied externally by the AI-proposed path.
// A malformed predicate returns an error; callers on the discovery path
// are expected to discard the candidate silently rather than propagate
// the error — grounding is strictly required.
func Parse(s string) (*Predicate, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return nil, fmt.Errorf("predicate: empty expression")
	}
	clauses := strings.Split(s, " and ")
	terms := make([]Comparison, 0, len(clauses))
	for _, c := range clauses {
		c = collapseWhitespace(c)
		t, err := parseClause(c)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return New(terms...)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var opTokens = []Op{OpGE, OpLE, OpEq, OpGT, OpLT} // longer tokens first to avoid ">" matching ">="

func parseClause(c string) (Comparison, error) {
	for _, op := range opTokens {
		marker := " " + string(op) + " "
		if idx := strings.Index(c, marker); idx >= 0 {
			fieldStr := strings.TrimSpace(c[:idx])
			valStr := strings.TrimSpace(c[idx+len(marker):])
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return Comparison{}, fmt.Errorf("predicate: bad value %q: %w", valStr, err)
			}
			f := Field(fieldStr)
			if !knownFields[f] {
				return Comparison{}, fmt.Errorf("predicate: unknown field %q", fieldStr)
			}
			return Comparison{Field: f, Op: op, Value: val}, nil
		}
	}
	return Comparison{}, fmt.Errorf("predicate: unparseable clause %q", c)
}
