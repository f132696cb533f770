package statemachine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// Evaluator compiles and caches expr programs for conditions and for the
// {{...}} fragments inside reply/set_variable templates, so each unique
// expression string is parsed exactly once regardless of how many times the
// owning state is entered.
type Evaluator struct {
	programs map[string]*vm.Program
}

// NewEvaluator builds an empty, ready-to-use Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

func (e *Evaluator) compile(source string) (*vm.Program, error) {
	if p, ok := e.programs[source]; ok {
		return p, nil
	}
	p, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.programs[source] = p
	return p, nil
}

// EvalCondition evaluates a condition expression against env, treating
// unknown identifiers and non-boolean results as falsy rather than erroring
// the state machine step.
func (e *Evaluator) EvalCondition(source string, env map[string]interface{}) (bool, error) {
	if strings.TrimSpace(source) == "" {
		return true, nil
	}
	p, err := e.compile(source)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(p, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, nil
	}
	return b, nil
}

var templateFragment = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// RenderTemplate substitutes every {{expr}} fragment in tmpl with the
// stringified result of evaluating expr against env. Unknown identifiers
// evaluate to falsy/empty per EvalCondition's semantics, so a missing slot
// renders as an empty string rather than failing the whole template.
func (e *Evaluator) RenderTemplate(tmpl string, env map[string]interface{}) (string, error) {
	var firstErr error
	out := templateFragment.ReplaceAllStringFunc(tmpl, func(match string) string {
		inner := templateFragment.FindStringSubmatch(match)[1]
		p, err := e.compile(inner)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		val, err := expr.Run(p, env)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		return stringify(val)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
