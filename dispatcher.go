package botmaster

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/everydev1618/botmaster/llm"
)

// ToolHandler executes one tool call against a bot and returns the
// JSON-encoded result shown to the model.
type ToolHandler func(b *Bot, args map[string]any) string

// ToolDef is one registered tool.
type ToolDef struct {
	Name        string
	Description string
	Schema      map[string]any
	Handler     ToolHandler
}

// ToolResult is the outcome of one executed call.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// actionCooldown throttles repeated use of the same tool by the same
// bot.
const actionCooldown = 2 * time.Second

// Dispatcher holds the tool registry and routes model tool calls to
// their handlers.
type Dispatcher struct {
	mu        sync.Mutex
	tools     map[string]*ToolDef
	order     []string
	cooldowns map[string]time.Time
	now       func() time.Time
}

// NewDispatcher returns an empty registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		tools:     make(map[string]*ToolDef),
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Register adds a tool. Registering a name twice replaces the handler
// but keeps its position.
func (d *Dispatcher) Register(def ToolDef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tools[def.Name]; !ok {
		d.order = append(d.order, def.Name)
	}
	d.tools[def.Name] = &def
}

// Schemas returns the registry as chat-completion tool schemas, in
// registration order.
func (d *Dispatcher) Schemas() []llm.ToolSchema {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]llm.ToolSchema, 0, len(d.order))
	for _, name := range d.order {
		t := d.tools[name]
		out = append(out, llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	return out
}

// Names returns the registered tool names in registration order.
func (d *Dispatcher) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

// Execute runs the model's tool calls in order and returns one result
// per call. Unknown tools and tools still on cooldown produce error
// results instead of failing the batch.
func (d *Dispatcher) Execute(b *Bot, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, ToolResult{
			CallID:  call.ID,
			Name:    call.Function.Name,
			Content: d.executeOne(b, call),
		})
	}
	return results
}

func (d *Dispatcher) executeOne(b *Bot, call llm.ToolCall) string {
	name := call.Function.Name

	d.mu.Lock()
	def, ok := d.tools[name]
	if !ok {
		d.mu.Unlock()
		return toolError("Function not found: " + name)
	}
	key := b.UUID + "/" + name
	if last, ok := d.cooldowns[key]; ok && d.now().Sub(last) < actionCooldown {
		d.mu.Unlock()
		return toolError(fmt.Sprintf("Action %s is on cooldown", name))
	}
	d.mu.Unlock()

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return toolError(fmt.Sprintf("Invalid arguments for %s: %v", name, err))
		}
	}

	slog.Debug("executing action", "bot", b.Name, "action", name)
	out := def.Handler(b, args)

	// The cooldown counts from the dispatch, not from the lookup, so a
	// rejected argument payload does not burn the action.
	d.mu.Lock()
	d.cooldowns[key] = d.now()
	d.mu.Unlock()
	return out
}

// toolError formats a failed tool result.
func toolError(msg string) string {
	out, _ := json.Marshal(map[string]any{"error": msg})
	return string(out)
}

// toolSuccess formats a successful tool result. Payload fields are
// nested under "data" so the model can tell outcome from content.
func toolSuccess(data map[string]any) string {
	result := map[string]any{"success": true}
	if len(data) > 0 {
		result["data"] = data
	}
	out, _ := json.Marshal(result)
	return string(out)
}
