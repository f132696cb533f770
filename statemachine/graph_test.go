package statemachine

import "testing"

func TestDefaultGraphLoadsAndValidates(t *testing.T) {
	tools := NewToolRegistry()
	tools.Register(&SearchTopServicesTool{})
	tools.Register(&ValidateAvailabilityTool{})
	eval := NewEvaluator()

	g, err := DefaultGraph(tools, eval)
	if err != nil {
		t.Fatalf("DefaultGraph: %v", err)
	}
	for _, required := range RequiredStates {
		if _, ok := g.StateByName(required); !ok {
			t.Fatalf("missing required state %q", required)
		}
	}
}

func TestLoadGraphRejectsMissingRequiredState(t *testing.T) {
	tools := NewToolRegistry()
	eval := NewEvaluator()
	src := []byte(`
states:
  - name: START
    on_enter:
      - type: reply
        template: hello
messages:
  hello: "hi"
`)
	_, err := LoadGraph(src, tools, eval)
	if err == nil {
		t.Fatal("expected error for graph missing required states")
	}
}

func TestLoadGraphRejectsUnknownTool(t *testing.T) {
	tools := NewToolRegistry()
	eval := NewEvaluator()
	src := []byte(`
states:
  - name: START
    on_enter:
      - type: call_tool
        tool: does.not.exist
        save_as: x
  - name: HUMAN_HANDOFF
  - name: MENU_WAITING
  - name: CONFIRM_INTENT
  - name: SCHEDULING_ROUTING
  - name: VALIDATE_BEFORE_CONFIRM
  - name: INFO_ROUTING
  - name: SCHEDULING_CONFIRMED
`)
	_, err := LoadGraph(src, tools, eval)
	if err == nil {
		t.Fatal("expected error for unknown tool reference")
	}
}

func TestLoadGraphRejectsTransitionToUnknownState(t *testing.T) {
	tools := NewToolRegistry()
	eval := NewEvaluator()
	src := []byte(`
states:
  - name: START
    on_enter:
      - type: transition
        target: NOWHERE
  - name: HUMAN_HANDOFF
  - name: MENU_WAITING
  - name: CONFIRM_INTENT
  - name: SCHEDULING_ROUTING
  - name: VALIDATE_BEFORE_CONFIRM
  - name: INFO_ROUTING
  - name: SCHEDULING_CONFIRMED
`)
	_, err := LoadGraph(src, tools, eval)
	if err == nil {
		t.Fatal("expected error for transition to unknown state")
	}
}
