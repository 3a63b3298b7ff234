package legacyversion

import (
	"fmt"
	"strings"
)

// Operator is one of the six constraint comparison operators.
type Operator int

const (
	_ Operator = iota

	OpEQ // ==
	OpNE // !=
	OpLT // <
	OpLTE
	OpGT
	OpGTE
)

func (o Operator) String() string {
	switch o {
	case OpEQ:
		return "=="
	case OpNE:
		return "!="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	default:
		return "?"
	}
}

// Constraint is a single (operator, version) pair.
type Constraint struct {
	Op      Operator
	Version Version
}

// Match reports whether v satisfies this single constraint.
func (c Constraint) Match(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpEQ:
		return cmp == 0
	case OpNE:
		return cmp != 0
	case OpLT:
		return cmp < 0
	case OpLTE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGTE:
		return cmp >= 0
	default:
		panic("legacyversion: unknown operator")
	}
}

func (c Constraint) String() string {
	return c.Op.String() + c.Version.String()
}

// ConstraintSet is an ordered set of Constraints, evaluated conjunctively:
// a version matches iff it matches every constraint in the set.
type ConstraintSet []Constraint

// Matches reports whether v satisfies every constraint in the set. An
// empty set matches everything.
func (cs ConstraintSet) Matches(v Version) bool {
	for _, c := range cs {
		if !c.Match(v) {
			return false
		}
	}
	return true
}

func (cs ConstraintSet) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

const opChars = "=!<>"

// ParseConstraints parses a comma-separated list of "op version" pairs,
// e.g. ">= 1.0, != 1.4, < 2.0". Whitespace around operators and commas is
// ignored.
func ParseConstraints(s string) (ConstraintSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out ConstraintSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.LastIndexAny(part, opChars) + 1
		if i == 0 {
			return nil, fmt.Errorf("legacyversion: missing operator in constraint %q", part)
		}
		opStr := strings.TrimSpace(part[:i])
		verStr := strings.TrimSpace(part[i:])
		v, err := Parse(verStr)
		if err != nil {
			return nil, fmt.Errorf("legacyversion: constraint %q: %w", part, err)
		}
		op, err := parseOperator(opStr)
		if err != nil {
			return nil, fmt.Errorf("legacyversion: constraint %q: %w", part, err)
		}
		out = append(out, Constraint{Op: op, Version: v})
	}
	return out, nil
}

func parseOperator(s string) (Operator, error) {
	switch s {
	case "==":
		return OpEQ, nil
	case "!=":
		return OpNE, nil
	case "<":
		return OpLT, nil
	case "<=":
		return OpLTE, nil
	case ">":
		return OpGT, nil
	case ">=":
		return OpGTE, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}
