package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	botmaster "github.com/everydev1618/botmaster"
	"github.com/everydev1618/botmaster/internal/prompts"
	"github.com/everydev1618/botmaster/serve"
)

type consoleDeps struct {
	fleet    *botmaster.Fleet
	sessions *botmaster.SessionManager
	store    *serve.SQLiteStore
	presets  *prompts.Loader
}

// runConsole reads operator commands from stdin until ctx is canceled
// or stdin closes.
func runConsole(ctx context.Context, deps consoleDeps) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	fmt.Println(`Type "help" for console commands.`)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleConsoleLine(ctx, deps, strings.TrimSpace(line))
		}
	}
}

func handleConsoleLine(ctx context.Context, deps consoleDeps, line string) {
	if line == "" {
		return
	}
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Println(`Commands:
  bots                     List bots and their status
  servers                  List stored servers
  sessions                 List live LLM sessions
  presets                  List persona presets
  prompt <name> <preset>   Apply a persona preset to a bot
  say <name> <message...>  Send chat as a bot
  reconnect <name>         Drop a bot's connection`)

	case "bots":
		for _, b := range deps.fleet.All() {
			moving := ""
			if b.IsMoving() {
				moving = " moving"
			}
			fmt.Printf("  %-24s %-13s hp=%.0f %s%s\n", b.Name, b.Status(), b.Health(), b.Addr().String(), moving)
		}
		if deps.fleet.Len() == 0 {
			fmt.Println("  no bots")
		}

	case "servers":
		records, err := deps.store.ListServers(ctx)
		if err != nil {
			fmt.Println("  error:", err)
			return
		}
		for _, rec := range records {
			fmt.Printf("  [%d] %s:%d %s (%d/%d players)\n",
				rec.ID, rec.Host, rec.Port, rec.Name, rec.Players, rec.MaxPlayers)
		}
		if len(records) == 0 {
			fmt.Println("  no servers")
		}

	case "sessions":
		n := 0
		for _, b := range deps.fleet.All() {
			if sid, ok := deps.sessions.SessionForBot(b.UUID); ok {
				fmt.Printf("  %s -> session %s\n", b.Name, sid)
				n++
			}
		}
		if n == 0 {
			fmt.Println("  no live sessions")
		}

	case "presets":
		for _, p := range deps.presets.List() {
			fmt.Printf("  %-20s %s\n", p.Name, p.Description)
		}
		if deps.presets.Count() == 0 {
			fmt.Println("  no presets")
		}

	case "prompt":
		if len(args) < 2 {
			fmt.Println("  usage: prompt <name> <preset>")
			return
		}
		b, ok := deps.fleet.GetByName(args[0])
		if !ok {
			fmt.Println("  no such bot:", args[0])
			return
		}
		preset, err := deps.presets.Get(args[1])
		if err != nil {
			fmt.Println("  error:", err)
			return
		}
		b.SetSystemPrompt(preset.Body)
		if err := deps.store.UpdateBotPrompt(ctx, b.UUID, preset.Body); err != nil {
			fmt.Println("  persist failed:", err)
			return
		}
		fmt.Printf("  applied preset %q to %s\n", preset.Name, b.Name)

	case "say":
		if len(args) < 2 {
			fmt.Println("  usage: say <name> <message...>")
			return
		}
		b, ok := deps.fleet.GetByName(args[0])
		if !ok {
			fmt.Println("  no such bot:", args[0])
			return
		}
		b.SendChat(strings.Join(args[1:], " "))

	case "reconnect":
		if len(args) != 1 {
			fmt.Println("  usage: reconnect <name>")
			return
		}
		b, ok := deps.fleet.GetByName(args[0])
		if !ok {
			fmt.Println("  no such bot:", args[0])
			return
		}
		b.Disconnect()
		fmt.Printf("  %s queued for reconnect\n", b.Name)

	default:
		fmt.Printf("  unknown command %q, try \"help\"\n", cmd)
	}
}
