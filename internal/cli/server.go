package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crewquest/internal/app"
	"crewquest/internal/config"
	"crewquest/internal/domain"
	"crewquest/internal/gemini"
	"crewquest/internal/infra/memory"
	pgarchive "crewquest/internal/infra/postgres"
	redisinfra "crewquest/internal/infra/redis"
	transport "crewquest/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the crew trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	apiKey := config.GeminiAPIKey()
	if apiKey == "" {
		log.Printf("GEMINI_API_KEY not set; rounds will be served from the scenario archive")
	}
	generator := gemini.NewClient(apiKey,
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithMaxAttempts(cfg.Gemini.MaxAttempts),
	)

	archiveTTL := config.TTLDuration(cfg.Archive.TTL, 10*time.Minute)

	// Seed templates stay available even with Postgres configured: on a cold
	// archive the seeds are what keeps the first games playable.
	var loader memory.ArchiveLoader = memory.NewStaticLoader(memory.SeedScenarios())
	var recorder memory.ArchiveRecorder
	if pool != nil {
		pg := pgarchive.NewScenarioArchive(pool)
		loader = fallbackLoader{primary: pg, seeds: memory.NewStaticLoader(memory.SeedScenarios())}
		recorder = pg
	}

	var archive app.ScenarioArchive
	if redisClient != nil {
		opts := []redisinfra.ArchiveOption{}
		if recorder != nil {
			opts = append(opts, redisinfra.WithRecorder(recorder))
		}
		archive = redisinfra.NewScenarioArchive(redisClient, loader, archiveTTL, opts...)
	} else {
		opts := []memory.ArchiveOption{}
		if recorder != nil {
			opts = append(opts, memory.WithRecorder(recorder))
		}
		archive = memory.NewScenarioArchive(loader, archiveTTL, opts...)
	}

	var leaderboard app.LeaderboardStore
	if redisClient != nil {
		leaderboard = redisinfra.NewLeaderboardStore(redisClient)
	} else {
		leaderboard = memory.NewLeaderboardStore()
	}

	service := app.NewGameService(memory.NewGameStore(), generator, archive, leaderboard,
		app.WithRounds(cfg.Game.Rounds),
		app.WithLeaderboardSize(cfg.Game.LeaderboardSize),
	)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/leaderboard", wsHandler.ServeLeaderboard)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting crewquest on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// fallbackLoader serves archived scenarios from Postgres, topping up from
// the built-in seeds when a category has nothing archived yet.
type fallbackLoader struct {
	primary memory.ArchiveLoader
	seeds   memory.ArchiveLoader
}

func (l fallbackLoader) LoadScenarios(ctx context.Context, category domain.Category) ([]domain.Scenario, error) {
	scenarios, err := l.primary.LoadScenarios(ctx, category)
	if err != nil {
		log.Printf("archive loader failed, falling back to seeds: %v", err)
	}
	if len(scenarios) > 0 {
		return scenarios, nil
	}
	return l.seeds.LoadScenarios(ctx, category)
}
