// Package main runs the bot orchestrator and its HTTP control plane.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	botmaster "github.com/everydev1618/botmaster"
	"github.com/everydev1618/botmaster/internal/prompts"
	"github.com/everydev1618/botmaster/llm"
	"github.com/everydev1618/botmaster/serve"
)

var version = "dev"

// tickInterval paces the orchestrator loop. Bots sync every 40ms, so
// the loop has to run considerably faster than that.
const tickInterval = time.Millisecond

func main() {
	dataDir := flag.String("data", "data", "Data directory (config, database, frontend)")
	addr := flag.String("addr", "", "API listen address, overrides config")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("botmaster %s\n", version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*dataDir, *addr); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(dataDir, addrOverride string) error {
	cfg, err := botmaster.LoadConfig(filepath.Join(dataDir, "config.json"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.LoadBasePrompt(filepath.Join(dataDir, "prompt.md")); err != nil {
		slog.Warn("base prompt unavailable", "error", err)
	}

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	if addrOverride != "" {
		addr = addrOverride
	}

	store, err := serve.NewSQLiteStore(filepath.Join(dataDir, "botmaster.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	if err := store.Init(); err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	decoder := botmaster.NewTextDecoder(cfg.MessageEncoding)
	names := botmaster.NewNames()
	if err := names.LoadObjects(filepath.Join(dataDir, "objects.txt")); err != nil && !os.IsNotExist(err) {
		slog.Warn("object names unavailable", "error", err)
	}
	if err := names.LoadZones(filepath.Join(dataDir, "zones.txt")); err != nil && !os.IsNotExist(err) {
		slog.Warn("zone names unavailable", "error", err)
	}

	presets := prompts.NewLoader(filepath.Join(dataDir, "prompts"))
	if err := presets.Load(); err != nil {
		slog.Warn("prompt presets unavailable", "error", err)
	} else if presets.Count() > 0 {
		slog.Info("prompt presets loaded", "count", presets.Count())
	}

	world := botmaster.NewWorldPool()
	raycast := botmaster.FlatWorld{}
	fleet := botmaster.NewFleet()
	newTransport := botmaster.TransportFactory(func() botmaster.Transport {
		return botmaster.NewLoopbackTransport()
	})

	queryClient := botmaster.NewQueryClient(5*time.Second, decoder)

	dispatcher := botmaster.NewDispatcher()
	botmaster.RegisterAllTools(dispatcher, names, queryClient)

	sessions := botmaster.NewSessionManager(botmaster.SessionManagerDeps{
		Fleet:      fleet,
		Client:     llm.NewClient(),
		Providers:  store,
		Dispatcher: dispatcher,
		Store:      store,
		BasePrompt: cfg.BasePrompt,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rebuild the fleet from persistence.
	if err := restoreBots(ctx, store, fleet, botmaster.BotDeps{
		World:   world,
		Raycast: raycast,
		Decoder: decoder,
		Names:   names,
	}, newTransport); err != nil {
		return fmt.Errorf("restore bots: %w", err)
	}
	if err := sessions.Restore(ctx); err != nil {
		slog.Warn("session restore failed", "error", err)
	}

	queue := botmaster.NewConnectionQueue(cfg.ConnectionPolicy)
	querier := botmaster.NewQuerier(store, queryClient,
		time.Duration(cfg.QueryIntervalSeconds)*time.Second)

	api := serve.New(serve.Deps{
		Fleet:        fleet,
		Sessions:     sessions,
		Store:        store,
		Query:        queryClient,
		NewTransport: newTransport,
		World:        world,
		Raycast:      raycast,
		Decoder:      decoder,
		Names:        names,
	}, serve.Config{
		Addr:   addr,
		WebZip: filepath.Join(dataDir, "dist.zip"),
	})
	scheduler := serve.NewScheduler(store)

	slog.Info("botmaster starting", "version", version, "addr", addr, "bots", fleet.Len())

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := api.Start(ctx); err != nil {
			select {
			case errCh <- fmt.Errorf("api server: %w", err):
			default:
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		querier.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sessions.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Start(ctx); err != nil {
			slog.Error("scheduler", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tickLoop(ctx, fleet, queue)
	}()

	if cfg.EnableConsole {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runConsole(ctx, consoleDeps{
				fleet:    fleet,
				sessions: sessions,
				store:    store,
				presets:  presets,
			})
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		stop()
	}

	wg.Wait()

	// Drop every connection before exit so servers see clean quits.
	for _, b := range fleet.All() {
		b.Disconnect()
	}
	slog.Info("botmaster stopped")
	return runErr
}

// tickLoop drives connection admission and per-bot processing.
func tickLoop(ctx context.Context, fleet *botmaster.Fleet, queue *botmaster.ConnectionQueue) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bots := fleet.All()
			queue.Process(bots)
			for _, b := range bots {
				b.Process()
			}
		}
	}
}

// restoreBots rebuilds runtime bots from the persisted fleet.
func restoreBots(ctx context.Context, store *serve.SQLiteStore, fleet *botmaster.Fleet, deps botmaster.BotDeps, newTransport botmaster.TransportFactory) error {
	records, err := store.ListBots(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		srv, err := store.GetServer(ctx, rec.ServerID)
		if err != nil {
			slog.Warn("bot references missing server", "bot", rec.Name, "server_id", rec.ServerID)
			continue
		}
		d := deps
		d.UUID = rec.UUID
		d.Transport = newTransport()
		b := botmaster.NewBot(rec.Name, d)
		b.SetServer(srv.Host, srv.Port)
		b.SetInvulnerable(rec.Invulnerable)
		b.SetSystemPrompt(rec.SystemPrompt)
		fleet.Add(b)
	}
	if n := fleet.Len(); n > 0 {
		slog.Info("fleet restored", "bots", n)
	}
	return nil
}
