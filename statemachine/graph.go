package statemachine

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RequiredStates are the states every graph must declare (initial = START,
// terminal = SCHEDULING_CONFIRMED).
var RequiredStates = []string{
	"START",
	"HUMAN_HANDOFF",
	"MENU_WAITING",
	"CONFIRM_INTENT",
	"SCHEDULING_ROUTING",
	"VALIDATE_BEFORE_CONFIRM",
	"INFO_ROUTING",
	"SCHEDULING_CONFIRMED",
}

var knownActionTypes = map[ActionType]bool{
	ActionReply:          true,
	ActionTransition:     true,
	ActionCheckOverride:  true,
	ActionAggregateBuffer: true,
	ActionSetVariable:    true,
	ActionCallTool:       true,
}

// LoadGraph parses and validates a YAML state graph. Unknown action types
// or tool names fail the load; evaluator is used to pre-compile every
// condition and template so a typo surfaces at startup, not mid-conversation.
func LoadGraph(yamlSource []byte, tools *ToolRegistry, eval *Evaluator) (*StateGraph, error) {
	var doc graphFile
	if err := yaml.Unmarshal(yamlSource, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing state graph YAML")
	}

	g := &StateGraph{states: make(map[string]StateDef), messages: doc.Messages}
	for _, s := range doc.States {
		if _, dup := g.states[s.Name]; dup {
			return nil, errors.Errorf("duplicate state name %q", s.Name)
		}
		g.states[s.Name] = s
		g.order = append(g.order, s.Name)
	}

	for _, required := range RequiredStates {
		if _, ok := g.states[required]; !ok {
			return nil, errors.Errorf("state graph missing required state %q", required)
		}
	}

	for _, s := range g.states {
		for _, list := range [][]Action{s.OnEnter, s.OnUserMessage, s.OnUserMessageOrSlots} {
			for _, a := range list {
				if err := validateAction(a, s.Name, g, tools, eval); err != nil {
					return nil, err
				}
			}
		}
	}

	return g, nil
}

func validateAction(a Action, stateName string, g *StateGraph, tools *ToolRegistry, eval *Evaluator) error {
	if !knownActionTypes[a.Type] {
		return errors.Errorf("state %q: unknown action type %q", stateName, a.Type)
	}
	if a.Condition != "" {
		if _, err := eval.EvalCondition(a.Condition, map[string]interface{}{}); err != nil {
			return errors.Wrapf(err, "state %q: invalid condition %q", stateName, a.Condition)
		}
	}

	switch a.Type {
	case ActionReply:
		if a.Template == "" {
			return fmt.Errorf("state %q: reply action missing template", stateName)
		}
		msg, ok := g.messages[a.Template]
		if !ok {
			return fmt.Errorf("state %q: reply references unknown message %q", stateName, a.Template)
		}
		if _, err := eval.RenderTemplate(msg, map[string]interface{}{}); err != nil {
			return errors.Wrapf(err, "state %q: invalid reply template %q", stateName, a.Template)
		}
	case ActionTransition:
		if a.Target == "" {
			return fmt.Errorf("state %q: transition action missing target", stateName)
		}
		if _, ok := g.states[a.Target]; !ok {
			return fmt.Errorf("state %q: transition targets unknown state %q", stateName, a.Target)
		}
	case ActionCheckOverride:
		if a.Var == "" {
			return fmt.Errorf("state %q: check_override action missing var", stateName)
		}
	case ActionSetVariable:
		if a.Name == "" {
			return fmt.Errorf("state %q: set_variable action missing name", stateName)
		}
	case ActionCallTool:
		if a.Tool == "" {
			return fmt.Errorf("state %q: call_tool action missing tool", stateName)
		}
		if _, ok := tools.Get(a.Tool); !ok {
			return fmt.Errorf("state %q: call_tool references unknown tool %q", stateName, a.Tool)
		}
		if a.SaveAs == "" {
			return fmt.Errorf("state %q: call_tool action missing save_as", stateName)
		}
	}
	return nil
}
