package botmaster

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/everydev1618/botmaster/llm"
)

func echoTool(name string) ToolDef {
	return ToolDef{
		Name:        name,
		Description: "test tool",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			return toolSuccess(map[string]any{"echo": args["value"]})
		},
	}
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func TestDispatcherExecute(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoTool("echo"))
	b, _, _ := newTestBot("Tester")

	results := d.Execute(b, []llm.ToolCall{toolCall("c1", "echo", `{"value":"hi"}`)})
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].CallID != "c1" || results[0].Name != "echo" {
		t.Errorf("result metadata = %+v", results[0])
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(results[0].Content), &out); err != nil {
		t.Fatal(err)
	}
	if out["success"] != true {
		t.Errorf("result content = %v", out)
	}
	data, ok := out["data"].(map[string]any)
	if !ok || data["echo"] != "hi" {
		t.Errorf("data = %v", out["data"])
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	d := NewDispatcher()
	b, _, _ := newTestBot("Tester")

	results := d.Execute(b, []llm.ToolCall{toolCall("c1", "launch_missiles", "{}")})
	var out map[string]any
	if err := json.Unmarshal([]byte(results[0].Content), &out); err != nil {
		t.Fatal(err)
	}
	if out["error"] != "Function not found: launch_missiles" {
		t.Errorf("content = %s", results[0].Content)
	}
	if _, ok := out["success"]; ok {
		t.Errorf("error result carries a success flag: %s", results[0].Content)
	}
}

func TestDispatcherBadArguments(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoTool("echo"))
	b, _, _ := newTestBot("Tester")

	results := d.Execute(b, []llm.ToolCall{toolCall("c1", "echo", `{broken`)})
	if !strings.Contains(results[0].Content, "Invalid arguments") {
		t.Errorf("content = %s", results[0].Content)
	}

	// A rejected payload does not burn the action's cooldown.
	retry := d.Execute(b, []llm.ToolCall{toolCall("c2", "echo", `{"value":"ok"}`)})
	if strings.Contains(retry[0].Content, "cooldown") {
		t.Errorf("retry after bad arguments throttled: %s", retry[0].Content)
	}
}

func TestDispatcherCooldown(t *testing.T) {
	clk := newFakeClock()
	d := NewDispatcher()
	d.now = clk.Now
	d.Register(echoTool("echo"))
	b, _, _ := newTestBot("Tester")

	first := d.Execute(b, []llm.ToolCall{toolCall("c1", "echo", "{}")})
	if strings.Contains(first[0].Content, "cooldown") {
		t.Fatalf("first call hit cooldown: %s", first[0].Content)
	}

	second := d.Execute(b, []llm.ToolCall{toolCall("c2", "echo", "{}")})
	var out map[string]any
	if err := json.Unmarshal([]byte(second[0].Content), &out); err != nil {
		t.Fatal(err)
	}
	if out["error"] != "Action echo is on cooldown" {
		t.Errorf("immediate repeat not throttled: %s", second[0].Content)
	}

	clk.Advance(actionCooldown + time.Millisecond)
	third := d.Execute(b, []llm.ToolCall{toolCall("c3", "echo", "{}")})
	if strings.Contains(third[0].Content, "cooldown") {
		t.Errorf("call after cooldown still throttled: %s", third[0].Content)
	}
}

func TestDispatcherCooldownPerBot(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoTool("echo"))
	a, _, _ := newTestBot("A")
	b, _, _ := newTestBot("B")

	d.Execute(a, []llm.ToolCall{toolCall("c1", "echo", "{}")})
	results := d.Execute(b, []llm.ToolCall{toolCall("c2", "echo", "{}")})
	if strings.Contains(results[0].Content, "cooldown") {
		t.Errorf("one bot's cooldown throttled another: %s", results[0].Content)
	}
}

func TestDispatcherSchemasKeepOrder(t *testing.T) {
	d := NewDispatcher()
	d.Register(echoTool("alpha"))
	d.Register(echoTool("beta"))
	d.Register(echoTool("gamma"))
	// Re-registering keeps the original position.
	d.Register(echoTool("beta"))

	want := []string{"alpha", "beta", "gamma"}
	got := d.Names()
	if len(got) != len(want) {
		t.Fatalf("Names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	schemas := d.Schemas()
	for i := range want {
		if schemas[i].Name != want[i] {
			t.Errorf("Schemas[%d] = %q, want %q", i, schemas[i].Name, want[i])
		}
	}
}
