package botmaster

// maxListedObjects caps list_objects output; dense areas stream far
// more objects than the model needs to see.
const maxListedObjects = 100

// RegisterAwarenessTools adds the read-only tools that describe the
// bot's surroundings.
func RegisterAwarenessTools(d *Dispatcher, names *Names) {
	d.Register(ToolDef{
		Name:        "list_players",
		Description: "List players visible around you, nearest first.",
		Schema: objSchema(map[string]any{
			"include_npcs": map[string]any{"type": "boolean", "description": "Include server NPCs, defaults to false"},
		}),
		Handler: func(b *Bot, args map[string]any) string {
			includeNPCs, _ := args["include_npcs"].(bool)
			pos := b.Position()
			players := b.World().PlayersInRange(b.Addr(), pos, perceptionRange, includeNPCs)
			nearestFirst(players, pos, func(p WorldPlayer) Vec3 { return p.Position })
			out := make([]map[string]any, 0, len(players))
			for _, p := range players {
				entry := map[string]any{
					"name":     p.Name,
					"health":   round2(p.Health),
					"weapon":   WeaponName(p.Weapon),
					"distance": round2(p.Position.Distance(pos)),
					"position": p.Position,
				}
				if texts := labelTexts(b.Stream().LabelsAttachedToPlayer(int(p.ID))); len(texts) > 0 {
					entry["labels"] = texts
				}
				out = append(out, entry)
			}
			return toolSuccess(map[string]any{"players": out})
		},
	})

	d.Register(ToolDef{
		Name:        "list_vehicles",
		Description: "List vehicles visible around you, nearest first.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			pos := b.Position()
			vehicles := b.World().VehiclesInRange(b.Addr(), pos, perceptionRange)
			nearestFirst(vehicles, pos, func(v WorldVehicle) Vec3 { return v.Position })
			out := make([]map[string]any, 0, len(vehicles))
			for _, v := range vehicles {
				entry := map[string]any{
					"id":       v.ID,
					"model":    v.Model,
					"health":   round2(v.Health),
					"distance": round2(v.Position.Distance(pos)),
					"position": v.Position,
				}
				if texts := labelTexts(b.Stream().LabelsAttachedToVehicle(int(v.ID))); len(texts) > 0 {
					entry["labels"] = texts
				}
				out = append(out, entry)
			}
			return toolSuccess(map[string]any{"vehicles": out})
		},
	})

	d.Register(ToolDef{
		Name:        "list_pickups",
		Description: "List pickups streamed around you, nearest first.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			pos := b.Position()
			pickups := b.Stream().PickupsInRange(pos, perceptionRange)
			nearestFirst(pickups, pos, func(p Pickup) Vec3 { return p.Position })
			out := make([]map[string]any, 0, len(pickups))
			for _, p := range pickups {
				out = append(out, map[string]any{
					"id":       p.ID,
					"model":    p.Model,
					"type":     p.Type,
					"distance": round2(p.Position.Distance(pos)),
					"position": p.Position,
				})
			}
			return toolSuccess(map[string]any{"pickups": out})
		},
	})

	d.Register(ToolDef{
		Name:        "list_objects",
		Description: "List world objects streamed around you, nearest first. Capped at 100 entries.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			pos := b.Position()
			objects := b.Stream().ObjectsInRange(pos, perceptionRange)
			nearestFirst(objects, pos, func(o Object) Vec3 { return o.Position })
			if len(objects) > maxListedObjects {
				objects = objects[:maxListedObjects]
			}
			out := make([]map[string]any, 0, len(objects))
			for _, o := range objects {
				entry := map[string]any{
					"id":       o.ID,
					"name":     names.ObjectName(o.Model),
					"distance": round2(o.Position.Distance(pos)),
					"position": o.Position,
				}
				if o.MaterialText != "" {
					entry["text"] = o.MaterialText
				}
				out = append(out, entry)
			}
			return toolSuccess(map[string]any{"objects": out})
		},
	})

	d.Register(ToolDef{
		Name:        "list_objects_text",
		Description: "List nearby world objects that carry readable text, nearest first.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			pos := b.Position()
			objects := b.Stream().ObjectsInRange(pos, perceptionRange)
			labeled := objects[:0]
			for _, o := range objects {
				if o.MaterialText != "" {
					labeled = append(labeled, o)
				}
			}
			nearestFirst(labeled, pos, func(o Object) Vec3 { return o.Position })
			if len(labeled) > maxListedObjects {
				labeled = labeled[:maxListedObjects]
			}
			out := make([]map[string]any, 0, len(labeled))
			for _, o := range labeled {
				out = append(out, map[string]any{
					"id":       o.ID,
					"name":     names.ObjectName(o.Model),
					"text":     o.MaterialText,
					"distance": round2(o.Position.Distance(pos)),
					"position": o.Position,
				})
			}
			return toolSuccess(map[string]any{"objects": out})
		},
	})

	d.Register(ToolDef{
		Name:        "list_labels",
		Description: "List 3D text labels visible around you, nearest first.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			pos := b.Position()
			labels := b.Stream().LabelsInRange(pos, perceptionRange)
			nearestFirst(labels, pos, func(l Label) Vec3 { return l.Position })
			out := make([]map[string]any, 0, len(labels))
			for _, l := range labels {
				out = append(out, map[string]any{
					"id":       l.ID,
					"text":     l.Text,
					"distance": round2(l.Position.Distance(pos)),
					"position": l.Position,
				})
			}
			return toolSuccess(map[string]any{"labels": out})
		},
	})

	d.Register(ToolDef{
		Name:        "get_chatbox_history",
		Description: "Read the recent chat history, oldest first.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			return toolSuccess(map[string]any{"messages": b.ChatboxHistory()})
		},
	})
}

// labelTexts flattens attached labels to their display strings.
func labelTexts(labels []Label) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.Text)
	}
	return out
}

// RegisterServerQueryTools adds the scoreboard tool. It asks the game
// server directly over the query protocol, so it sees every connected
// player, not just the streamed ones; when the query fails the bot's
// own world view is the fallback.
func RegisterServerQueryTools(d *Dispatcher, query *QueryClient) {
	d.Register(ToolDef{
		Name:        "list_server_player",
		Description: "List every player connected to the server with score and ping, not just the ones near you.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			addr := b.Addr()
			if query != nil {
				if players, err := query.Players(addr.Host, addr.Port); err == nil {
					out := make([]map[string]any, 0, len(players))
					for _, p := range players {
						out = append(out, map[string]any{
							"id":    p.ID,
							"name":  p.Name,
							"score": p.Score,
							"ping":  p.Ping,
						})
					}
					return toolSuccess(map[string]any{"players": out, "source": "scoreboard"})
				}
			}
			known := b.World().AllPlayers(addr, false)
			out := make([]map[string]any, 0, len(known))
			for _, p := range known {
				out = append(out, map[string]any{"id": p.ID, "name": p.Name})
			}
			return toolSuccess(map[string]any{"players": out, "source": "streamed"})
		},
	})
}
