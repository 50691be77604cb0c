package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexteleven/eleven/policy"
	"github.com/nexteleven/eleven/session"
)

// TodosTool lets the model keep a task list across turns. The entries are
// opaque text; only the model assigns them meaning.
type TodosTool struct{}

func (t *TodosTool) Name() string { return "todos" }

func (t *TodosTool) Description() string {
	return "Manage the persistent task list. Actions: 'list' shows all entries, 'set' stores an entry under an id, 'remove' deletes one."
}

func (t *TodosTool) Parameters() map[string]any {
	return map[string]any{
		"action": map[string]any{
			"type":        "string",
			"description": "One of 'list', 'set', 'remove'.",
		},
		"id": map[string]any{
			"type":        "string",
			"description": "Entry identifier, required for 'set' and 'remove'.",
		},
		"text": map[string]any{
			"type":        "string",
			"description": "Entry text, required for 'set'.",
		},
	}
}

// Classify reports safe: the store is runtime metadata under .eleven, not
// workspace content.
func (t *TodosTool) Classify(args map[string]any) policy.RiskClass {
	return policy.RiskSafe
}

func (t *TodosTool) Execute(ctx context.Context, args map[string]any) Result {
	action, ok := stringArg(args, "action")
	if !ok {
		return ErrorResult("missing required argument 'action'")
	}

	todos, err := session.LoadTodos()
	if err != nil {
		return ErrorResult("%v", err)
	}

	switch action {
	case "list":
		if len(todos) == 0 {
			return Result{Output: "no todos"}
		}
		var b strings.Builder
		for _, id := range todos.IDs() {
			fmt.Fprintf(&b, "%s: %s\n", id, todos[id])
		}
		return Result{Output: b.String()}

	case "set":
		id, ok := stringArg(args, "id")
		if !ok {
			return ErrorResult("'set' requires an 'id' argument")
		}
		text, ok := stringArg(args, "text")
		if !ok {
			return ErrorResult("'set' requires a 'text' argument")
		}
		todos[id] = text
		if err := todos.Save(); err != nil {
			return ErrorResult("%v", err)
		}
		return Result{Output: fmt.Sprintf("todo %s saved", id)}

	case "remove":
		id, ok := stringArg(args, "id")
		if !ok {
			return ErrorResult("'remove' requires an 'id' argument")
		}
		if _, exists := todos[id]; !exists {
			return ErrorResult("no todo with id %q", id)
		}
		delete(todos, id)
		if err := todos.Save(); err != nil {
			return ErrorResult("%v", err)
		}
		return Result{Output: fmt.Sprintf("todo %s removed", id)}

	default:
		return ErrorResult("unknown action %q; use 'list', 'set', or 'remove'", action)
	}
}
