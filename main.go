package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"pulse_server/config"
	"pulse_server/logging"
	"pulse_server/routes"
	"pulse_server/services"
	"pulse_server/socket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	var media *services.MediaService
	if cfg.Media.Bucket != "" {
		media, err = services.NewMediaService(ctx, cfg.Store.Region, cfg.Media.Bucket, cfg.Media.URLTTL)
		if err != nil {
			return err
		}
		logging.Info().Str("bucket", cfg.Media.Bucket).Msg("media signing enabled")
	}

	// Real-time transport
	presence := socket.NewPresenceRegistry(nil)
	hub := socket.NewHub(nil, presence, store, socket.HubConfig{
		EventRate:  cfg.Presence.EventRate,
		EventBurst: cfg.Presence.EventBurst,
	})
	socketServer := socket.NewServer(hub)

	var publisher services.Publisher = hub.LocalPublisher()
	if cfg.Redis.URL != "" {
		client, err := services.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()

		fanout := services.NewRedisPublisher(client, cfg.Redis.Channel, uuid.NewString(), publisher)
		go func() {
			if err := fanout.Relay(ctx); err != nil {
				logging.Error().Err(err).Msg("fan-out relay stopped")
			}
		}()
		publisher = fanout
		logging.Info().Str("channel", cfg.Redis.Channel).Msg("cross-instance fan-out enabled")
	}

	// Initialize Services
	notifications := services.NewNotificationService(store, publisher)
	graph := services.NewGraphService(store, notifications, hub)
	stories := services.NewStoryService(store, notifications, media)
	maxima := services.NewMaximaSource(store, cfg.Feed.MaximaCacheTTL)
	engagement := services.NewEngagementService(store, notifications, stories, maxima)
	content := services.NewContentService(store, notifications, publisher, media)
	feed := services.NewFeedService(store, maxima, media, cfg.Feed)
	search := services.NewSearchService(store, maxima, media, cfg.Feed.Timeout)

	hub.Notifications = notifications
	hub.Publisher = publisher

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if _, err := socket.SchedulePresenceSweep(scheduler, presence, cfg.Presence.SweepInterval, cfg.Presence.StaleAfter); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logging.Warn().Err(err).Msg("scheduler shutdown failed")
		}
	}()

	go func() {
		if err := socketServer.Serve(); err != nil {
			logging.Error().Err(err).Msg("socket server stopped")
		}
	}()
	defer socketServer.Close()

	// Initialize the router
	r := mux.NewRouter()
	routes.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.PathPrefix("/socket.io/").Handler(socketServer)

	api := routes.APIRouter(r)
	api.Use(func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, cfg.Server.RequestTimeout, `{"error":"request timed out","code":"timeout"}`)
	})
	routes.RegisterFeedRoutes(api, feed, search)
	routes.RegisterContentRoutes(api, content, stories)
	routes.RegisterActionRoutes(api, engagement)
	routes.RegisterNotificationRoutes(api, notifications)
	routes.RegisterGraphRoutes(api, graph, presence)
	if media != nil {
		routes.RegisterMediaRoutes(api, media)
	}

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", socket.ActorHeader},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", cfg.Server.Port).Str("store", cfg.Store.Driver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore selects the engagement store backend
func openStore(ctx context.Context, cfg config.StoreConfig) (services.Store, error) {
	switch cfg.Driver {
	case "memory":
		logging.Warn().Msg("using in-memory store; data is lost on restart")
		return services.NewMemoryStore(), nil
	case "dynamodb":
		client, err := services.InitializeDynamoDBClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("region", cfg.Region).Msg("DynamoDB client initialized")
		return services.NewDynamoStore(&services.DynamoService{Client: client}, cfg), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
