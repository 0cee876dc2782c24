// Package main is the entry point for the workflow execution engine.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowforge/dagflow/internal/api"
	"github.com/flowforge/dagflow/internal/artifact"
	"github.com/flowforge/dagflow/internal/auth"
	"github.com/flowforge/dagflow/internal/coderunner"
	"github.com/flowforge/dagflow/internal/config"
	"github.com/flowforge/dagflow/internal/events"
	"github.com/flowforge/dagflow/internal/execstate"
	"github.com/flowforge/dagflow/internal/executor"
	"github.com/flowforge/dagflow/internal/k8s"
	"github.com/flowforge/dagflow/internal/logging"
	"github.com/flowforge/dagflow/internal/node"
	"github.com/flowforge/dagflow/internal/tracing"
	"github.com/flowforge/dagflow/internal/validator"
	"github.com/flowforge/dagflow/internal/workflowstore"
	"github.com/flowforge/dagflow/pkg/refnodes"
)

func main() {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("starting flowengine",
		slog.String("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// StateStore
	var store execstate.StateStore
	switch cfg.StateStoreBackend {
	case "redis":
		redisCfg := &execstate.RedisConfig{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisKeyPrefix,
		}
		redisStore, err := execstate.NewRedisStore(redisCfg)
		if err != nil {
			logger.Error("failed to connect to Redis, falling back to memory state store", "error", err)
			store = execstate.NewMemoryStore()
		} else {
			store = redisStore
			logger.Info("using Redis state store", slog.String("url", cfg.RedisURL))
		}
	default:
		store = execstate.NewMemoryStore()
		logger.Info("using in-memory state store")
	}
	defer store.Close()

	// WorkflowStore
	var workflows workflowstore.WorkflowStore
	switch cfg.WorkflowStoreBackend {
	case "redis":
		redisWF, err := workflowstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to Redis, falling back to memory workflow store", "error", err)
			workflows = workflowstore.NewMemoryStore()
		} else {
			workflows = redisWF
		}
	default:
		workflows = workflowstore.NewMemoryStore()
	}
	defer workflows.Close()

	// Domain-level logger (distinct from the HTTP-layer slog.Logger above)
	domainLogger := logging.New(logging.Level(cfg.LogLevel), store, logger)

	// Node registry: http, transform, database are stateless factories;
	// code is backed by a local-subprocess/Kubernetes dispatcher.
	registry := node.NewRegistry()
	registry.Register("http", refnodes.NewHTTPNode, false)
	registry.Register("transform", refnodes.NewTransformNode, false)
	registry.Register("database", refnodes.NewDatabaseNode, false)

	localRunner := coderunner.NewLocalRunner(map[string]string{
		"FLOWENGINE_URL": "http://localhost:" + cfg.Port,
	}, "")

	var k8sRunner coderunner.Runner
	if cfg.K8sInCluster || cfg.K8sKubeconfig != "" {
		k8sClient, err := k8s.NewClient(&k8s.Config{
			InCluster:  cfg.K8sInCluster,
			Kubeconfig: cfg.K8sKubeconfig,
			Namespace:  cfg.K8sNamespace,
		})
		if err != nil {
			logger.Error("failed to build Kubernetes client, code nodes requiring an image will fail", "error", err)
		} else {
			k8sRunner = coderunner.NewK8sRunner(k8sClient, nil)
			logger.Info("Kubernetes code-node backend enabled", slog.String("namespace", cfg.K8sNamespace))
		}
	}
	dispatcher := coderunner.NewDispatcher(localRunner, k8sRunner)
	registry.Register("code", refnodes.NewCodeNodeFactory(dispatcher), false)

	// Artifact offload service
	artifactSvc, err := artifact.New(&artifact.Config{
		Type:            cfg.ArtifactBackend,
		Endpoint:        cfg.ArtifactEndpoint,
		Bucket:          cfg.ArtifactBucket,
		Region:          cfg.ArtifactRegion,
		AccessKeyID:     cfg.ArtifactAccessKeyID,
		SecretAccessKey: cfg.ArtifactSecretKey,
		UseSSL:          cfg.ArtifactUseSSL,
		PathPrefix:      "artifacts",
	})
	if err != nil {
		logger.Error("failed to initialize artifact backend, falling back to memory", "error", err)
		artifactSvc, _ = artifact.New(artifact.DefaultConfig())
	}

	// Tracing
	tracingProvider, err := tracing.Init(ctx, &tracing.Config{
		ServiceName:  "dagflow",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SampleRate:   cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tracingProvider.Shutdown(shutdownCtx)
		}()
	}

	// Executor
	exec := executor.New(&executor.Config{MaxWorkers: cfg.MaxWorkers}, store, domainLogger, registry)
	bus := events.NewBus()
	exec.SetEventBus(bus)
	exec.SetArtifactService(artifactSvc, cfg.ArtifactThresholdBytes)

	v, err := validator.New()
	if err != nil {
		logger.Error("failed to create validator, continuing without schema validation", "error", err)
		v = nil
	}

	var authMiddleware *auth.Middleware
	if cfg.OIDCEnabled {
		provider, err := auth.NewProvider(ctx, &auth.Config{
			Issuer:       cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
		})
		if err != nil {
			logger.Error("failed to initialize OIDC provider, running without auth", "error", err)
		} else {
			authMiddleware = auth.NewMiddleware(provider, &auth.MiddlewareConfig{Enabled: true})
			logger.Info("OIDC auth enabled", slog.String("issuer", cfg.OIDCIssuer))
		}
	}

	var rateLimiter *auth.PerIPRateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = auth.NewPerIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handlers := api.NewHandlers(exec, store, workflows, v, bus, cfg, logger)
	server := api.NewServer(handlers)
	server.AuthMiddleware = authMiddleware
	server.RateLimiter = rateLimiter

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
