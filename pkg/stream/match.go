package stream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/tideline/pkg/event"
)

// Matcher selects records for DeleteMatching and LatestWhere.
type Matcher interface {
	Match(Record) bool
}

// MatchFunc adapts a function to Matcher.
type MatchFunc func(Record) bool

func (f MatchFunc) Match(r Record) bool { return f(r) }

// FieldEquals matches events whose field equals value. Numbers compare
// numerically, so 10 and 10.0 are equal.
func FieldEquals(field string, value event.Value) Matcher {
	return MatchFunc(func(r Record) bool {
		v, ok := r.Event.Get(field)
		return ok && v.Equal(value)
	})
}

// celMatcher evaluates a compiled CEL program against a record. Evaluation
// errors, such as a missing key, count as no match.
type celMatcher struct {
	expr string
	prog cel.Program
}

// CEL compiles a boolean CEL expression over the variables:
//
//	event  map(string, dyn)  decoded payload
//	id     string            entry id, "<ms>-<seq>"
//	ts_ms  int               millisecond part of the id
//
// For example: event.symbol == "BTC" && event.price > 100.0
func CEL(expr string) (Matcher, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("stream: empty filter expression")
	}
	env, err := cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("id", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("stream: filter %q: %w", expr, iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("stream: filter %q evaluates to %s, want bool", expr, out)
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return celMatcher{expr: expr, prog: prog}, nil
}

func (m celMatcher) Match(r Record) bool {
	out, _, err := m.prog.Eval(map[string]any{
		"event": r.Event.ToMap(),
		"id":    r.ID.String(),
		"ts_ms": int64(r.ID.Ms()),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

func (m celMatcher) String() string { return m.expr }
