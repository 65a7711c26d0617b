package botmaster

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// Tool perception and interaction ranges in game units.
const (
	perceptionRange = 300.0
	interactRange   = 3.0
)

// objSchema builds a JSON-schema object for tool parameters.
func objSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func argString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func argInt(args map[string]any, key string) (int, bool) {
	f, ok := argFloat(args, key)
	return int(f), ok
}

func moveTypeFromString(s string) int {
	switch s {
	case "walk":
		return MoveTypeWalk
	case "sprint":
		return MoveTypeSprint
	default:
		return MoveTypeRun
	}
}

// The walk/run/sprint names map one gait faster than they say so bots
// keep pace with real players.
func moveSpeedForType(t int) float64 {
	switch t {
	case MoveTypeWalk:
		return MoveSpeedRun
	case MoveTypeSprint:
		return MoveSpeedSprint
	default:
		return MoveSpeedSprint
	}
}

// RegisterWorldTools adds the tools that act on the game world.
func RegisterWorldTools(d *Dispatcher) {
	d.Register(ToolDef{
		Name:        "chat",
		Description: "Say something in the game chat. Messages starting with / are sent as server commands.",
		Schema: objSchema(map[string]any{
			"message": map[string]any{"type": "string", "description": "The chat message or /command to send"},
		}, "message"),
		Handler: func(b *Bot, args map[string]any) string {
			msg, ok := argString(args, "message")
			if !ok || msg == "" {
				return toolError("message is required")
			}
			b.SendChat(msg)
			return toolSuccess(map[string]any{"sent": msg})
		},
	})

	d.Register(ToolDef{
		Name:        "command",
		Description: "Run a server command. The leading slash is added when missing.",
		Schema: objSchema(map[string]any{
			"command": map[string]any{"type": "string", "description": "The command to run, e.g. /stats"},
		}, "command"),
		Handler: func(b *Bot, args map[string]any) string {
			cmd, ok := argString(args, "command")
			if !ok || cmd == "" {
				return toolError("command is required")
			}
			if !strings.HasPrefix(cmd, "/") {
				cmd = "/" + cmd
			}
			b.SendChat(cmd)
			return toolSuccess(map[string]any{"sent": cmd})
		},
	})

	d.Register(ToolDef{
		Name:        "goto",
		Description: "Walk to a world coordinate, routing around terrain when needed. Targets further than 150 units fail.",
		Schema: objSchema(map[string]any{
			"x":         map[string]any{"type": "number"},
			"y":         map[string]any{"type": "number"},
			"z":         map[string]any{"type": "number"},
			"move_type": map[string]any{"type": "string", "enum": []string{"walk", "run", "sprint"}, "description": "Gait, defaults to run"},
		}, "x", "y", "z"),
		Handler: func(b *Bot, args map[string]any) string {
			x, okX := argFloat(args, "x")
			y, okY := argFloat(args, "y")
			z, okZ := argFloat(args, "z")
			if !okX || !okY || !okZ {
				return toolError("x, y and z are required")
			}
			dest := Vec3{X: x, Y: y, Z: z}
			if b.Position().Distance(dest) > maxPathSpan {
				return toolError(fmt.Sprintf("target is further than %.0f units away", maxPathSpan))
			}
			mt, _ := argString(args, "move_type")
			t := moveTypeFromString(mt)
			b.GoWithPath(dest, t, moveSpeedForType(t))
			return toolSuccess(map[string]any{"destination": dest})
		},
	})

	d.Register(ToolDef{
		Name:        "forced_goto",
		Description: "Walk straight toward a world coordinate, ignoring terrain routing. Use when goto reports a pathfinding failure.",
		Schema: objSchema(map[string]any{
			"x":         map[string]any{"type": "number"},
			"y":         map[string]any{"type": "number"},
			"z":         map[string]any{"type": "number"},
			"move_type": map[string]any{"type": "string", "enum": []string{"walk", "run", "sprint"}, "description": "Gait, defaults to run"},
		}, "x", "y", "z"),
		Handler: func(b *Bot, args map[string]any) string {
			x, okX := argFloat(args, "x")
			y, okY := argFloat(args, "y")
			z, okZ := argFloat(args, "z")
			if !okX || !okY || !okZ {
				return toolError("x, y and z are required")
			}
			dest := Vec3{X: x, Y: y, Z: z}
			mt, _ := argString(args, "move_type")
			t := moveTypeFromString(mt)
			b.Go(dest, t, 0, true, moveSpeedForType(t), 0, 0)
			return toolSuccess(map[string]any{"destination": dest})
		},
	})

	d.Register(ToolDef{
		Name:        "random_explore",
		Description: "Wander to a random spot nearby. Useful when there is nothing specific to do.",
		Schema: objSchema(map[string]any{
			"distance":  map[string]any{"type": "number", "description": "Maximum wander distance in units, up to 150, defaults to 50"},
			"move_type": map[string]any{"type": "string", "enum": []string{"walk", "run", "sprint"}, "description": "Gait, defaults to run"},
		}),
		Handler: func(b *Bot, args map[string]any) string {
			dist, ok := argFloat(args, "distance")
			if !ok || dist <= 0 {
				dist = 50
			}
			if dist > maxPathSpan {
				dist = maxPathSpan
			}
			pos := b.Position()
			angle := rand.Float64() * 2 * math.Pi
			r := dist * math.Sqrt(rand.Float64())
			x := pos.X + math.Cos(angle)*r
			y := pos.Y + math.Sin(angle)*r
			dest := Vec3{X: x, Y: y, Z: GroundZ(b.Raycast(), x, y)}
			mt, _ := argString(args, "move_type")
			t := moveTypeFromString(mt)
			b.GoWithPath(dest, t, moveSpeedForType(t))
			return toolSuccess(map[string]any{"destination": dest})
		},
	})

	d.Register(ToolDef{
		Name:        "go_to_player",
		Description: "Walk toward a visible player, stopping at the given distance.",
		Schema: objSchema(map[string]any{
			"name":     map[string]any{"type": "string", "description": "Exact player name"},
			"distance": map[string]any{"type": "number", "description": "Stop this many units short, defaults to 2"},
		}, "name"),
		Handler: func(b *Bot, args map[string]any) string {
			name, ok := argString(args, "name")
			if !ok || name == "" {
				return toolError("name is required")
			}
			target, ok := findVisiblePlayer(b, name)
			if !ok {
				return toolError(fmt.Sprintf("player %q is not nearby", name))
			}
			stop, ok := argFloat(args, "distance")
			if !ok || stop <= 0 {
				stop = 2
			}
			b.Go(target.Position, MoveTypeRun, 0, true, MoveSpeedSprint, stop, 0)
			return toolSuccess(map[string]any{
				"target":   target.Name,
				"distance": round2(target.Position.Distance(b.Position())),
			})
		},
	})

	d.Register(ToolDef{
		Name:        "stop_moving",
		Description: "Stop walking immediately.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			b.Stop()
			return toolSuccess(nil)
		},
	})

	d.Register(ToolDef{
		Name:        "send_pickup",
		Description: "Collect a pickup that is within reach.",
		Schema: objSchema(map[string]any{
			"id": map[string]any{"type": "integer", "description": "Pickup id from list_pickups"},
		}, "id"),
		Handler: func(b *Bot, args map[string]any) string {
			id, ok := argInt(args, "id")
			if !ok {
				return toolError("id is required")
			}
			pk, ok := b.Stream().PickupByID(id)
			if !ok {
				return toolError(fmt.Sprintf("no pickup with id %d nearby", id))
			}
			if pk.Position.Distance(b.Position()) > interactRange {
				return toolError(fmt.Sprintf("pickup %d is out of reach, walk closer first", id))
			}
			b.SendPickup(id)
			return toolSuccess(map[string]any{"id": id, "model": pk.Model})
		},
	})

	d.Register(ToolDef{
		Name:        "dialog_response",
		Description: "Answer the currently displayed dialog.",
		Schema: objSchema(map[string]any{
			"button":   map[string]any{"type": "string", "enum": []string{"left", "right"}, "description": "Which button to press"},
			"input":    map[string]any{"type": "string", "description": "Text for input dialogs"},
			"listitem": map[string]any{"type": "integer", "description": "Selected row for list dialogs, -1 when not a list"},
		}, "button"),
		Handler: func(b *Bot, args map[string]any) string {
			button, ok := argString(args, "button")
			if !ok {
				return toolError("button is required")
			}
			input, _ := argString(args, "input")
			listitem, ok := argInt(args, "listitem")
			if !ok {
				listitem = -1
			}
			if err := b.SendDialogResponse(button == "left", input, listitem); err != nil {
				return toolError(err.Error())
			}
			return toolSuccess(nil)
		},
	})

	d.Register(ToolDef{
		Name:        "pause_route",
		Description: "Pause the waypoint route being walked, keeping the current progress.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			b.PauseMovepath()
			status, _, _ := b.MovepathState()
			return toolSuccess(map[string]any{"route_status": status.String()})
		},
	})

	d.Register(ToolDef{
		Name:        "resume_route",
		Description: "Resume a paused waypoint route.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			b.ResumeMovepath()
			status, _, _ := b.MovepathState()
			return toolSuccess(map[string]any{"route_status": status.String()})
		},
	})
}

// findVisiblePlayer locates a named player within perception range.
func findVisiblePlayer(b *Bot, name string) (WorldPlayer, bool) {
	players := b.World().PlayersInRange(b.Addr(), b.Position(), perceptionRange, true)
	for _, p := range players {
		if p.Name == name {
			return p, true
		}
	}
	return WorldPlayer{}, false
}

// nearestFirst sorts entries by distance to pos.
func nearestFirst[T any](items []T, pos Vec3, at func(T) Vec3) {
	sort.Slice(items, func(i, j int) bool {
		return at(items[i]).DistanceSq(pos) < at(items[j]).DistanceSq(pos)
	})
}
