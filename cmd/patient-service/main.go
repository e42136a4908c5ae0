package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/caio-healthchain/ms-patients/internal/patient"
	"github.com/caio-healthchain/ms-patients/pkg/config"
	"github.com/caio-healthchain/ms-patients/pkg/database"
	"github.com/caio-healthchain/ms-patients/pkg/interfaces"
	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/monitoring"
	"github.com/caio-healthchain/ms-patients/pkg/readstore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.Info("Starting Patient Service")

	// Initialize write store connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to write store")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CreateSchema(ctx); err != nil {
		log.WithError(err).Fatal("Failed to create write store schema")
	}

	// Initialize read store connection
	rs, err := readstore.NewConnection(&cfg.ReadStore, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to read store")
	}
	defer rs.Close()

	if err := rs.DefineIndexes(); err != nil {
		log.WithError(err).Warn("Failed to define read store indexes")
	}

	// Initialize Redis client. It backs the read-path cache and the
	// live event transport; in offline mode with caching disabled it
	// is not needed at all.
	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Events.Mode == "live" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	// Wire the domain service with explicitly constructed collaborators
	repository := patient.NewRepository(db.DB, log)
	validator := patient.NewValidator(repository, log)
	projector := patient.NewProjector(rs, log)
	publisher := patient.NewPublisher(&cfg.Events, redisClient, log)

	var cache interfaces.Cache
	if cfg.Cache.Enabled {
		cache = patient.NewRedisCache(redisClient, log)
	} else {
		cache = patient.NewNoopCache()
	}

	service := patient.NewService(validator, repository, projector, publisher, cache, &cfg.Cache, log)
	handlers := patient.NewHandlers(service, log)

	// Health checks: the write store is authoritative, everything
	// downstream only degrades
	health := monitoring.NewHealthManager(cfg.Events.ServiceName)
	health.RegisterCritical("write_store", func(ctx context.Context) error {
		return db.Health()
	})
	health.RegisterOptional("read_store", func(ctx context.Context) error {
		return rs.Health()
	})
	if redisClient != nil {
		health.RegisterOptional("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// Setup HTTP router
	router := mux.NewRouter()
	router.Use(loggingMiddleware(log))

	if cfg.Monitoring.Enabled {
		router.Use(monitoring.HTTPMiddleware)
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}
	router.Handle(cfg.Monitoring.HealthPath, health.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterRoutes(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Patient Service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully")
	}

	log.Info("Patient Service stopped")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			log.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapper.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			}).Info("HTTP request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
