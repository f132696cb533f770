package statemachine

import (
	"context"

	"github.com/jonatasporto/trinks-router/disambiguate"
	"github.com/jonatasporto/trinks-router/domain"
)

// StepResult is everything a single runtime step produced. The conversation
// controller owns applying Handoff/BufferAggregation side effects; the
// runtime itself never touches the buffer or handoff stores directly.
type StepResult struct {
	Replies              []string
	Handoff              bool
	RequiresAggregation  bool
}

// HandoffChecker reports whether an admin-set handoff flag is currently
// active for a phone; check_override actions consult it to populate a
// boolean var, they never decide the transition themselves — the graph's
// own condition-guarded reply/transition actions do that.
type HandoffChecker func(ctx context.Context, tenant domain.Tenant, phone domain.Phone) (bool, error)

// Runtime executes a validated StateGraph against a ConversationContext,
// running each action list top-to-bottom and short-circuiting the moment a
// transition action fires — the remaining actions in that list are skipped,
// matching the teacher's event-loop idiom of "first match wins".
type Runtime struct {
	graph   *StateGraph
	eval    *Evaluator
	tools   *ToolRegistry
	nlp     *disambiguate.Service
	handoff HandoffChecker
}

// NewRuntime wires a Runtime over an already-validated graph.
func NewRuntime(graph *StateGraph, eval *Evaluator, tools *ToolRegistry, nlp *disambiguate.Service, handoff HandoffChecker) *Runtime {
	return &Runtime{graph: graph, eval: eval, tools: tools, nlp: nlp, handoff: handoff}
}

// Graph exposes the loaded StateGraph so callers can resolve named message
// templates (e.g. the conversation controller's standalone handoff reply)
// without duplicating the graph's wording.
func (r *Runtime) Graph() *StateGraph { return r.graph }

// Enter runs the target state's on_enter action list. Callers invoke this
// once for the conversation's initial state and again every time Step
// transitions into a new state. A state declaring on_user_message_or_slots
// instead of on_enter (VALIDATE_BEFORE_CONFIRM) has that list run right
// after entry too, using whatever slots already carry — this is what lets a
// same-turn SCHEDULING_ROUTING -> VALIDATE_BEFORE_CONFIRM hop evaluate
// immediately instead of waiting for a further inbound message.
func (r *Runtime) Enter(ctx context.Context, cc *domain.ConversationContext) (StepResult, error) {
	state, ok := r.graph.StateByName(cc.State)
	if !ok {
		return StepResult{}, &UnknownStateError{State: cc.State}
	}
	result, err := r.run(ctx, cc, state.OnEnter)
	if err != nil || result.Handoff {
		return result, err
	}
	if cc.State == state.Name && len(state.OnUserMessageOrSlots) > 0 {
		more, err := r.run(ctx, cc, state.OnUserMessageOrSlots)
		if err != nil {
			return result, err
		}
		result.Replies = append(result.Replies, more.Replies...)
		result.Handoff = result.Handoff || more.Handoff
		result.RequiresAggregation = result.RequiresAggregation || more.RequiresAggregation
	}
	return result, nil
}

// Step runs the current state's on_user_message action list against the
// freshly received userText, then, if that neither handed off nor left the
// state, its on_user_message_or_slots action list.
func (r *Runtime) Step(ctx context.Context, cc *domain.ConversationContext, userText string) (StepResult, error) {
	state, ok := r.graph.StateByName(cc.State)
	if !ok {
		return StepResult{}, &UnknownStateError{State: cc.State}
	}
	cc.Slots.RawQuery = userText

	result, err := r.run(ctx, cc, state.OnUserMessage)
	if err != nil || result.Handoff {
		return result, err
	}
	if cc.State == state.Name && len(state.OnUserMessageOrSlots) > 0 {
		more, err := r.run(ctx, cc, state.OnUserMessageOrSlots)
		if err != nil {
			return result, err
		}
		result.Replies = append(result.Replies, more.Replies...)
		result.Handoff = result.Handoff || more.Handoff
		result.RequiresAggregation = result.RequiresAggregation || more.RequiresAggregation
	}
	return result, nil
}

func (r *Runtime) run(ctx context.Context, cc *domain.ConversationContext, actions []Action) (StepResult, error) {
	var out StepResult
	env := r.buildEnv(cc)

	for _, a := range actions {
		if a.Condition != "" {
			ok, err := r.eval.EvalCondition(a.Condition, env)
			if err != nil {
				return out, err
			}
			if !ok {
				continue
			}
		}

		switch a.Type {
		case ActionReply:
			msg, ok := r.graph.MessageByName(a.Template)
			if !ok {
				return out, &UnknownMessageError{Name: a.Template}
			}
			text, err := r.eval.RenderTemplate(msg, env)
			if err != nil {
				return out, err
			}
			out.Replies = append(out.Replies, text)

		case ActionTransition:
			cc.State = a.Target
			if a.Target == "HUMAN_HANDOFF" {
				out.Handoff = true
			}
			entered, err := r.Enter(ctx, cc)
			if err != nil {
				return out, err
			}
			out.Replies = append(out.Replies, entered.Replies...)
			out.Handoff = out.Handoff || entered.Handoff
			out.RequiresAggregation = out.RequiresAggregation || entered.RequiresAggregation
			return out, nil // short-circuit: transition ends this action list

		case ActionCheckOverride:
			active := false
			if r.handoff != nil {
				var err error
				active, err = r.handoff(ctx, cc.Tenant, cc.Phone)
				if err != nil {
					return out, err
				}
			}
			if cc.Vars == nil {
				cc.Vars = make(map[string]bool)
			}
			cc.Vars[a.Var] = active
			env["vars"] = cc.Vars

		case ActionAggregateBuffer:
			out.RequiresAggregation = true

		case ActionSetVariable:
			rendered, err := r.eval.RenderTemplate(a.Value, env)
			if err != nil {
				return out, err
			}
			if cc.Vars == nil {
				cc.Vars = make(map[string]bool)
			}
			cc.Vars[a.Name] = rendered != "" && rendered != "false" && rendered != "0"
			env["vars"] = cc.Vars

		case ActionCallTool:
			tool, ok := r.tools.Get(a.Tool)
			if !ok {
				return out, &UnknownToolError{Tool: a.Tool}
			}
			args := make(map[string]interface{}, len(a.Args))
			args["tenant"] = cc.Tenant
			args["phone"] = cc.Phone
			for k, v := range a.Args {
				rendered, err := r.eval.RenderTemplate(v, env)
				if err != nil {
					return out, err
				}
				args[k] = rendered
			}
			result, err := tool.Run(ctx, args)
			if err != nil {
				return out, err
			}
			if cc.ToolResults == nil {
				cc.ToolResults = make(map[string]map[string]interface{})
			}
			cc.ToolResults[a.SaveAs] = result
			env[a.SaveAs] = result
		}
	}
	return out, nil
}

func (r *Runtime) buildEnv(cc *domain.ConversationContext) map[string]interface{} {
	env := map[string]interface{}{
		"state": cc.State,
		"phone": string(cc.Phone),
		"slots": map[string]interface{}{
			"service_id":        cc.Slots.ServiceID,
			"professional_id":   cc.Slots.ProfessionalID,
			"start_iso":         cc.Slots.StartISO,
			"raw_query":         cc.Slots.RawQuery,
			"category":          cc.Slots.Category,
			"validation_result": cc.Slots.ValidationResult,
			"top_suggestions":   cc.Slots.TopSuggestions,
		},
		"vars": cc.Vars,
		"nlp": map[string]interface{}{
			"is_ambiguous": func(q string) bool {
				if r.nlp == nil {
					return false
				}
				return r.nlp.IsAmbiguousPhrase(q)
			},
		},
	}
	for name, result := range cc.ToolResults {
		env[name] = result
	}
	return env
}

// UnknownStateError signals a ConversationContext referencing a state that
// no longer exists in the loaded graph (stale persisted state after a
// deploy) — the conversation controller resets to START on this error.
type UnknownStateError struct{ State string }

func (e *UnknownStateError) Error() string { return "statemachine: unknown state " + e.State }

// UnknownToolError signals a call_tool action naming a tool absent from the
// registry; LoadGraph should have caught this already, so seeing it at
// runtime means the graph and registry were built inconsistently.
type UnknownToolError struct{ Tool string }

func (e *UnknownToolError) Error() string { return "statemachine: unknown tool " + e.Tool }

// UnknownMessageError signals a reply action naming a template absent from
// the graph's messages map; LoadGraph should have caught this already.
type UnknownMessageError struct{ Name string }

func (e *UnknownMessageError) Error() string { return "statemachine: unknown message " + e.Name }
