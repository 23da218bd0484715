package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/habitatworks/habitat/internal/config"
	"github.com/habitatworks/habitat/internal/llm"
	"github.com/habitatworks/habitat/internal/logging"
	"github.com/habitatworks/habitat/internal/memory"
	"github.com/habitatworks/habitat/internal/persona"
	"github.com/habitatworks/habitat/internal/runtime"
	"github.com/habitatworks/habitat/internal/server"
	"github.com/habitatworks/habitat/internal/state"
	"github.com/habitatworks/habitat/internal/world"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()

	logger := logging.New("habitat", cfg.Server.Debug)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatalw("failed to initialize LLM client", "err", err)
	}

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "habitat.db"
	}
	db, err := state.Open(dbPath)
	if err != nil {
		logger.Fatalw("failed to open state database", "path", dbPath, "err", err)
	}
	defer func() { _ = db.Close() }()

	// Long-term memory is optional: an unreachable graph store means empty
	// recall, not a refusal to boot.
	var mem memory.Adapter
	if cfg.Memory.URI != "" {
		graph, err := memory.NewGraphStore(cfg.Memory.URI, cfg.Memory.User, cfg.Memory.Password, logger.Named("memory"))
		if err != nil {
			logger.Warnw("memory store unavailable, running without recall", "err", err)
		} else {
			defer func() { _ = graph.Close(ctx) }()
			mem = graph
		}
	}

	buildings := world.NewRegistry()
	for _, b := range cfg.Buildings {
		buildings.AddBuilding(world.Building{
			ID:       b.ID,
			Name:     b.Name,
			CityID:   cfg.City.ID,
			Capacity: b.Capacity,
		})
	}

	var dispatcher runtime.Dispatcher
	if len(cfg.Remotes) > 0 {
		endpoints := make(map[string]string, len(cfg.Remotes))
		for _, r := range cfg.Remotes {
			endpoints[r.ID] = r.BaseURL
		}
		dispatcher = runtime.NewHTTPDispatcher(endpoints)
	}

	city := runtime.NewCity(runtime.Options{
		CityID:     cfg.City.ID,
		PublicURL:  os.Getenv("PUBLIC_URL"),
		Buildings:  buildings,
		Log:        state.NewMessageLog(db),
		LLM:        llmClient,
		Memory:     mem,
		Tasks:      state.NewTaskSource(db),
		Store:      state.NewPersonaStore(db),
		Dispatcher: dispatcher,
		Logger:     logger.Named("city"),
	})

	for _, pc := range cfg.Personas {
		if pc.HomeCity != "" && pc.HomeCity != cfg.City.ID {
			if err := city.AddRemotePersona(pc.ID, pc.HomeURL, pc.Building); err != nil {
				logger.Fatalw("failed to host remote persona", "persona", pc.ID, "err", err)
			}
			continue
		}
		tz := pc.Timezone
		if tz == "" {
			tz = cfg.City.Timezone
		}
		_, err := city.AddPersona(ctx, persona.Config{
			ID:           pc.ID,
			Name:         pc.Name,
			SystemPrompt: pc.SystemPrompt,
			Timezone:     tz,
		}, pc.Building)
		if err != nil {
			logger.Fatalw("failed to provision persona", "persona", pc.ID, "err", err)
		}
	}

	srv := server.NewServer(city, logger.Named("http"))
	r := srv.SetupRouter()

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	logger.Infow("starting server", "city", cfg.City.ID, "port", port, "personas", len(cfg.Personas))
	if err := r.Run(":" + port); err != nil {
		logger.Fatalw("server exited", "err", err)
	}
}
