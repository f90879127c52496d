package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"aptitude-quiz/internal/app"
	"aptitude-quiz/internal/config"
	"aptitude-quiz/internal/domain"
	"aptitude-quiz/internal/flash"
	"aptitude-quiz/internal/infra/memory"
	"aptitude-quiz/internal/infra/postgres"
	infraredis "aptitude-quiz/internal/infra/redis"
	transport "aptitude-quiz/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// applyLogLevel uses the config level unless --log-level was given.
func applyLogLevel(cfg config.Config) {
	if logLevel == "" && cfg.Log.Level != "" {
		setupLogging(cfg.Log.Level)
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg)

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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var (
		loader  memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
		results app.ResultRepository
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewQuizLoader(pool)

		db := postgres.OpenBun(cfg.Postgres.URL)
		defer db.Close()
		results = postgres.NewResultStore(db)
	} else {
		results = memory.NewResultStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizRepo app.QuizRepository
		attempts app.AttemptRepository
		flashes  app.FlashRepository
	)
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
		attempts = infraredis.NewAttemptStore(redisClient, redisTTL)
		flashes = infraredis.NewFlashStore(redisClient, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		attempts = memory.NewAttemptStore()
		flashes = memory.NewFlashStore()
	}

	service := app.NewQuizService(attempts, quizRepo, results, flashes,
		app.WithTimerConfig(cfg.Timer.Countdown()),
	)
	wsHandler := transport.NewWSHandler(service,
		transport.WithTimerControl(cfg.Server.AllowTimerControl),
		transport.WithFlashAutoDismiss(config.TTLDuration(cfg.Flash.AutoDismiss, flash.DefaultAutoDismiss)),
	)
	router := transport.NewRouter(wsHandler, transport.NewFormHandler(service), cfg.Server.AllowedOrigins,
		log.Logger.With().Str("component", "http").Logger())

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuizzes provides a demo aptitude quiz; the Postgres loader replaces it in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"aptitude-1": {
			ID:           "aptitude-1",
			Title:        "General Aptitude",
			TimerSeconds: 300,
			Questions: []domain.Question{
				{
					ID:       "q1",
					Prompt:   "What is 15% of 200?",
					Category: "numerical",
					Options: []domain.Option{
						{ID: "a", Text: "20"},
						{ID: "b", Text: "30", Correct: true},
						{ID: "c", Text: "35"},
					},
				},
				{
					ID:       "q2",
					Prompt:   "Choose the word closest in meaning to \"candid\".",
					Category: "verbal",
					Options: []domain.Option{
						{ID: "a", Text: "frank", Correct: true},
						{ID: "b", Text: "secretive"},
						{ID: "c", Text: "careful"},
					},
				},
				{
					ID:       "q3",
					Prompt:   "Which numbers are prime?",
					Category: "logical",
					Multiple: true,
					Options: []domain.Option{
						{ID: "a", Text: "7", Correct: true},
						{ID: "b", Text: "9"},
						{ID: "c", Text: "11", Correct: true},
					},
				},
			},
		},
	}
}
