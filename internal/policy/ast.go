package policy

import (
	"fmt"
	"strings"

	"warden/internal/detectors"
)

// Context is what predicates are evaluated against: detector signals plus
// the actor's trust score under TrustPath.
type Context map[string]any

// TrustPath is the context key holding the actor's trust score.
const TrustPath = "trust.score"

// Predicate is one node of a rule's when-expression.
type Predicate interface {
	Eval(ctx Context) bool
	String() string
}

// AnyOf matches when the string (or any element of the string slice) at
// Path is one of Values.
type AnyOf struct {
	Path   string
	Values []string
}

func (p AnyOf) Eval(ctx Context) bool {
	var got []string
	switch v := ctx[p.Path].(type) {
	case nil:
		return false
	case string:
		got = []string{v}
	case []string:
		got = v
	default:
		got = []string{fmt.Sprint(v)}
	}
	for _, g := range got {
		for _, want := range p.Values {
			if strings.EqualFold(g, want) {
				return true
			}
		}
	}
	return false
}

func (p AnyOf) String() string {
	return fmt.Sprintf("%s any_of %v", p.Path, p.Values)
}

// AllOf matches when every boolean signal in Paths is true.
type AllOf struct {
	Paths []string
}

func (p AllOf) Eval(ctx Context) bool {
	if len(p.Paths) == 0 {
		return false
	}
	for _, path := range p.Paths {
		if b, _ := ctx[path].(bool); !b {
			return false
		}
	}
	return true
}

func (p AllOf) String() string {
	return fmt.Sprintf("all_of %v", p.Paths)
}

// AtLeast matches when the severity at Path ranks at or above Level.
type AtLeast struct {
	Path  string
	Level string
}

func (p AtLeast) Eval(ctx Context) bool {
	s, ok := ctx[p.Path].(string)
	if !ok {
		return false
	}
	want := detectors.SeverityRank(p.Level)
	return want > 0 && detectors.SeverityRank(s) >= want
}

func (p AtLeast) String() string {
	return fmt.Sprintf("%s at_least %s", p.Path, p.Level)
}

// Below matches when the number at Path is strictly less than Threshold.
type Below struct {
	Path      string
	Threshold float64
}

func (p Below) Eval(ctx Context) bool {
	v, ok := detectors.ToFloat(ctx[p.Path])
	return ok && v < p.Threshold
}

func (p Below) String() string {
	return fmt.Sprintf("%s below %g", p.Path, p.Threshold)
}

// Above matches when the number at Path is strictly greater than Threshold.
type Above struct {
	Path      string
	Threshold float64
}

func (p Above) Eval(ctx Context) bool {
	v, ok := detectors.ToFloat(ctx[p.Path])
	return ok && v > p.Threshold
}

func (p Above) String() string {
	return fmt.Sprintf("%s above %g", p.Path, p.Threshold)
}

// Equals matches when the value at Path renders equal to Value.
type Equals struct {
	Path  string
	Value any
}

func (p Equals) Eval(ctx Context) bool {
	v, ok := ctx[p.Path]
	if !ok || v == nil || p.Value == nil {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(p.Value)
}

func (p Equals) String() string {
	return fmt.Sprintf("%s equals %v", p.Path, p.Value)
}

// And matches when all children match.
type And []Predicate

func (p And) Eval(ctx Context) bool {
	if len(p) == 0 {
		return false
	}
	for _, c := range p {
		if !c.Eval(ctx) {
			return false
		}
	}
	return true
}

func (p And) String() string { return join("and", p) }

// Or matches when any child matches.
type Or []Predicate

func (p Or) Eval(ctx Context) bool {
	for _, c := range p {
		if c.Eval(ctx) {
			return true
		}
	}
	return false
}

func (p Or) String() string { return join("or", p) }

// Not inverts its child.
type Not struct {
	Pred Predicate
}

func (p Not) Eval(ctx Context) bool { return !p.Pred.Eval(ctx) }

func (p Not) String() string { return "not(" + p.Pred.String() + ")" }

func join(op string, preds []Predicate) string {
	parts := make([]string, len(preds))
	for i, c := range preds {
		parts[i] = c.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}
