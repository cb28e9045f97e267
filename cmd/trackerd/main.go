// Package main runs the opponent tracking daemon: it tails the
// detection event log produced by the capture pipeline, feeds events
// into the tracking session, persists match history to SQLite, and
// publishes live snapshots to overlay clients over WebSocket and REST.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/croverlay/croverlay/internal/api"
	"github.com/croverlay/croverlay/internal/config"
	"github.com/croverlay/croverlay/internal/events"
	"github.com/croverlay/croverlay/internal/knowledge"
	"github.com/croverlay/croverlay/internal/metrics"
	"github.com/croverlay/croverlay/internal/publish"
	"github.com/croverlay/croverlay/internal/storage"
	"github.com/croverlay/croverlay/internal/trace"
	"github.com/croverlay/croverlay/internal/tracker"
)

var (
	configPath = flag.String("config", "croverlay.toml", "Configuration file path")
	record     = flag.Bool("record", false, "Record ingested events to a trace file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	kb, err := knowledge.Load(cfg.Paths.Knowledge)
	if err != nil {
		log.Fatalf("Failed to load knowledge base: %v", err)
	}
	log.Printf("[Main] Knowledge base loaded: %d cards", kb.NumCards())

	// Open the match store.
	dbConfig := storage.DefaultConfig(cfg.Paths.Database)
	dbConfig.AutoMigrate = true
	db, err := storage.Open(dbConfig)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[Main] Error closing database: %v", err)
		}
	}()
	repo := storage.NewMatchRepository(db)

	// Wire the observers.
	dispatcher := events.NewDispatcher()
	dispatcher.Register(events.NewLoggingObserver(cfg.App.DebugMode))
	dispatcher.Register(storage.NewObserver(repo))

	publisher := publish.NewServer(cfg.Server.Addr)
	dispatcher.Register(publisher)

	m := metrics.NewTracker()

	trackerCfg, err := cfg.TrackerConfig()
	if err != nil {
		log.Fatalf("Invalid tracker config: %v", err)
	}
	session, err := tracker.NewSession(kb, trackerCfg, dispatcher, m)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	// Optional trace recording of everything ingested.
	var recorder *trace.Recorder
	if *record {
		path := filepath.Join(cfg.Paths.TraceDir,
			fmt.Sprintf("trace-%s.jsonl", time.Now().Format("20060102-150405")))
		recorder, err = trace.NewRecorder(path)
		if err != nil {
			log.Fatalf("Failed to open trace recorder: %v", err)
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("[Main] Error closing trace recorder: %v", err)
			}
		}()
		log.Printf("[Main] Recording trace to %s", path)
	}

	// Tail the detection event log.
	tailer, err := trace.NewTailer(&trace.TailerConfig{Path: cfg.Paths.EventLog})
	if err != nil {
		log.Fatalf("Failed to create tailer: %v", err)
	}
	if err := tailer.Start(); err != nil {
		log.Fatalf("Failed to start tailer: %v", err)
	}
	defer tailer.Stop()
	log.Printf("[Main] Tailing event log: %s", cfg.Paths.EventLog)

	// Servers.
	go func() {
		if err := publisher.Start(); err != nil {
			log.Fatalf("WebSocket server failed: %v", err)
		}
	}()
	apiServer := api.NewServer(&api.Config{Addr: cfg.Server.APIAddr}, session, repo, m)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Periodic ticks keep the elixir estimate moving between detections.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("[Main] Tracker daemon running")

	for {
		select {
		case ev := <-tailer.Events():
			if recorder != nil {
				if err := recorder.Append(ev); err != nil {
					log.Printf("[Main] Trace append failed: %v", err)
				}
			}
			if err := ev.Deliver(session); err != nil {
				if !errors.Is(err, tracker.ErrSessionInactive) {
					log.Printf("[Main] Event rejected: %v", err)
				}
			}
		case err := <-tailer.Errors():
			log.Printf("[Main] Tailer error: %v", err)
		case <-ticker.C:
			if session.Active() {
				if err := session.HandleTick(tracker.TickEvent{Timestamp: time.Now()}); err != nil {
					log.Printf("[Main] Tick rejected: %v", err)
				}
			}
		case <-sigChan:
			log.Println("[Main] Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := apiServer.Stop(shutdownCtx); err != nil {
				log.Printf("[Main] API shutdown error: %v", err)
			}
			if err := publisher.Stop(); err != nil {
				log.Printf("[Main] Publisher shutdown error: %v", err)
			}
			log.Println("[Main] Tracker daemon stopped")
			return
		}
	}
}
