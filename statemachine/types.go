// Package statemachine implements C5: execution of a declarative state
// graph against a per-phone ConversationContext. States and actions are
// loaded from YAML at startup into a typed graph (gopkg.in/yaml.v3);
// unknown action or tool names fail the load, never a later runtime step.
// Conditions and templates are compiled once into a tiny AST via
// github.com/antonmedv/expr, whose AllowUndefinedVariables option matches
// the rule that unknown identifiers evaluate to falsy.
package statemachine

// ActionType enumerates the StateAction sum type's variants.
type ActionType string

const (
	ActionReply           ActionType = "reply"
	ActionTransition       ActionType = "transition"
	ActionCheckOverride    ActionType = "check_override"
	ActionAggregateBuffer  ActionType = "aggregate_buffer"
	ActionSetVariable      ActionType = "set_variable"
	ActionCallTool         ActionType = "call_tool"
)

// Action is one declarative step of an on_enter/on_user_message list. Only
// the fields relevant to Type are populated; YAML loading validates that
// combination at load time.
type Action struct {
	Type ActionType `yaml:"type"`

	// Condition, if non-empty, gates whether this action runs; compiled once
	// at load time via the expr AST.
	Condition string `yaml:"condition,omitempty"`

	Template string `yaml:"template,omitempty"` // reply

	Target string `yaml:"target,omitempty"` // transition

	Var string `yaml:"var,omitempty"` // check_override

	Name  string `yaml:"name,omitempty"`  // set_variable
	Value string `yaml:"value,omitempty"` // set_variable (literal or {{template}})

	Tool   string            `yaml:"tool,omitempty"` // call_tool
	Args   map[string]string `yaml:"args,omitempty"`
	SaveAs string            `yaml:"save_as,omitempty"`
}

// StateDef is one node of the declarative state graph.
type StateDef struct {
	Name                 string   `yaml:"name"`
	Description          string   `yaml:"description,omitempty"`
	OnEnter              []Action `yaml:"on_enter,omitempty"`
	OnUserMessage        []Action `yaml:"on_user_message,omitempty"`
	OnUserMessageOrSlots []Action `yaml:"on_user_message_or_slots,omitempty"`
	Stay                 bool     `yaml:"stay,omitempty"`
}

// graphFile is the top-level YAML document shape.
type graphFile struct {
	States   []StateDef        `yaml:"states"`
	Messages map[string]string `yaml:"messages"`
}

// StateGraph is the typed, validated, load-time-materialized state machine
// definition. Messages holds the named reply templates referenced by
// reply{template} actions — content lives here rather than inline in each
// action so the same wording can be reused across states and edited without
// touching the graph's control flow.
type StateGraph struct {
	states   map[string]StateDef
	order    []string
	messages map[string]string
}

// MessageByName looks up a named reply template's raw (pre-render) content.
func (g *StateGraph) MessageByName(name string) (string, bool) {
	m, ok := g.messages[name]
	return m, ok
}

// StateByName looks up a validated state definition.
func (g *StateGraph) StateByName(name string) (StateDef, bool) {
	s, ok := g.states[name]
	return s, ok
}

// Names returns every declared state name, in declaration order.
func (g *StateGraph) Names() []string {
	return append([]string(nil), g.order...)
}
