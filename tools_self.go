package botmaster

// RegisterSelfTools adds the tools describing the bot itself.
func RegisterSelfTools(d *Dispatcher, names *Names) {
	d.Register(ToolDef{
		Name:        "get_position",
		Description: "Report your own world coordinates.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			pos := b.Position()
			return toolSuccess(map[string]any{
				"x":    round2(pos.X),
				"y":    round2(pos.Y),
				"z":    round2(pos.Z),
				"zone": names.ZoneName(pos),
			})
		},
	})

	d.Register(ToolDef{
		Name:        "get_password",
		Description: "Report the server password configured for this bot.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			return toolSuccess(map[string]any{"password": b.Password()})
		},
	})

	d.Register(ToolDef{
		Name:        "get_self_status",
		Description: "Report your own position, zone, health and movement state.",
		Schema:      objSchema(map[string]any{}),
		Handler: func(b *Bot, args map[string]any) string {
			pos := b.Position()
			vel := b.Velocity()
			routeStatus, routeIndex, routeLen := b.MovepathState()
			status := map[string]any{
				"name": b.Name,
				"position": map[string]any{
					"x":    round2(pos.X),
					"y":    round2(pos.Y),
					"z":    round2(pos.Z),
					"zone": names.ZoneName(pos),
				},
				"velocity":      map[string]any{"x": vel.X, "y": vel.Y, "z": vel.Z},
				"angle":         round2(b.Angle()),
				"health":        round2(b.Health()),
				"armor":         round2(b.Armor()),
				"is_moving":     b.IsMoving(),
				"is_dead":       b.HasFlag(FlagDead),
				"is_connected":  b.Connected(),
				"dialog_active": b.DialogActive(),
				"status":        b.Status().String(),
			}
			if routeStatus != MovepathInactive {
				status["route"] = map[string]any{
					"status":   routeStatus.String(),
					"waypoint": routeIndex,
					"total":    routeLen,
				}
			}
			return toolSuccess(status)
		},
	})
}

// RegisterAllTools installs the complete action registry. A nil query
// client limits list_server_player to the streamed world view.
func RegisterAllTools(d *Dispatcher, names *Names, query *QueryClient) {
	RegisterWorldTools(d)
	RegisterAwarenessTools(d, names)
	RegisterServerQueryTools(d, query)
	RegisterSelfTools(d, names)
}
