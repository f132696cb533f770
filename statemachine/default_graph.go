package statemachine

import _ "embed"

//go:embed graphs/default.yaml
var defaultGraphYAML []byte

// DefaultGraph returns the state graph required by the specification's
// flow: greeting -> menu -> disambiguation -> availability validation ->
// confirmed booking. Operators may instead call LoadGraph with their own
// YAML to customize wording or add states, as long as the required set
// still appears.
func DefaultGraph(tools *ToolRegistry, eval *Evaluator) (*StateGraph, error) {
	return LoadGraph(defaultGraphYAML, tools, eval)
}
