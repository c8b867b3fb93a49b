package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Drivers
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// Instrumentation
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	// Interne
	"github.com/jupiterclapton/cenackle/services/interaction-service/config"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/primary/events"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/primary/rest"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/assets"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/core/services"
	"github.com/jupiterclapton/cenackle/services/interaction-service/pkg/logger"
	"github.com/jupiterclapton/cenackle/services/interaction-service/pkg/telemetry"
)

// storage regroupe les trois relations du stockage principal
type storage interface {
	ports.PostRepository
	ports.LikeRepository
	ports.CommentRepository
}

func main() {
	// 1. Config & Logger
	cfg := config.Load()
	logger.Init(cfg.Env)
	slog.Info("🚀 Starting Interaction Service", "env", cfg.Env, "storage", cfg.StorageDriver)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Infrastructure: stockage principal (Postgres ou mémoire)
	var store storage
	switch cfg.StorageDriver {
	case "memory":
		store = repository.NewMemoryStore()
		slog.Warn("⚠️ In-memory storage: data is lost on restart")
	case "postgres":
		dbPool := mustConnectPostgres(ctx, cfg)
		defer dbPool.Close()
		repo := repository.NewPostgresRepo(dbPool)
		if err := repo.EnsureSchema(ctx); err != nil {
			slog.Error("Unable to apply schema", "error", err)
			os.Exit(1)
		}
		store = repo
	default:
		slog.Error("Unknown STORAGE_DRIVER", "driver", cfg.StorageDriver)
		os.Exit(1)
	}

	// 4. Infrastructure: graphe "follows" (Neo4j)
	var graph ports.GraphRepository = repository.NewMemoryGraph()
	if cfg.Neo4jURI != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
		if err != nil {
			slog.Error("Unable to create Neo4j driver", "error", err)
			os.Exit(1)
		}
		defer driver.Close(context.Background())
		if err := driver.VerifyConnectivity(ctx); err != nil {
			slog.Error("Unable to connect to Neo4j", "error", err)
			os.Exit(1)
		}
		neoRepo := repository.NewNeo4jGraph(driver)
		if err := neoRepo.EnsureSchema(ctx); err != nil {
			slog.Error("Unable to apply Neo4j schema", "error", err)
			os.Exit(1)
		}
		graph = neoRepo
		slog.Info("✅ Connected to Neo4j")
	}

	// 5. Infrastructure: timelines "following" (Redis)
	var timelines ports.TimelineRepository = repository.NewMemoryTimeline()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			slog.Error("Unable to instrument Redis", "error", err)
			os.Exit(1)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Unable to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		timelines = repository.NewRedisTimeline(rdb)
		slog.Info("✅ Connected to Redis")
	}

	timelineService := services.NewTimelineService(timelines, graph)

	// 6. Infrastructure: Event Broker (NATS). Sans NATS, fan-out en process.
	var publisher ports.EventPublisher = eventbroker.NewInProcessPublisher(timelineService)
	var fanout *events.EventHandler
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl)
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()

		pub, err := eventbroker.NewNatsPublisher(ctx, nc)
		if err != nil {
			slog.Error("Unable to init JetStream", "error", err)
			os.Exit(1)
		}
		publisher = pub

		fanout = events.NewEventHandler(timelineService)
		if _, err := nc.Subscribe(eventbroker.SubjectPostCreated, fanout.HandlePostCreated); err != nil {
			slog.Error("Failed to subscribe to NATS", "error", err)
			os.Exit(1)
		}
		slog.Info("✅ Connected to NATS, 👂 listening for post.created")
	}

	// 7. Assets & identité
	fileStore, err := assets.NewFileStore(cfg.AssetDir, cfg.AssetBaseURL)
	if err != nil {
		slog.Error("Unable to prepare asset dir", "error", err)
		os.Exit(1)
	}
	validator := mustTokenValidator(cfg)

	// 8. Initialisation du Core
	feedService := services.NewFeedService(store, store, store,
		services.WithPageLimits(cfg.FeedPageDefault, cfg.FeedPageMax),
		services.WithTimelines(timelines),
	)
	interactionService := services.NewInteractionService(store, store, store, publisher)
	postService := services.NewPostService(store, fileStore, publisher)
	graphService := services.NewGraphService(graph)

	// 9. Adapter HTTP + chaîne de middlewares
	api := rest.NewServer(feedService, interactionService, postService, graphService, rest.WithAssetDir(fileStore.Dir()))

	var h http.Handler = api.Routes()
	h = rest.AuthMiddleware(validator)(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	}).Handler(h)
	h = otelhttp.NewHandler(h, "interaction-http", otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 10. gRPC : Health Check & Reflection pour K8s / grpcurl
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		slog.Info("📡 gRPC health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server error", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		slog.Info("📡 HTTP API listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("🛑 Shutting down server...")

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	if fanout != nil {
		fanout.Wait()
	}

	slog.Info("👋 Server exited")
}

// --- HELPERS ---

func mustConnectPostgres(ctx context.Context, cfg config.Config) *pgxpool.Pool {
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		slog.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	// Instrumentation SQL (Pour voir les requêtes dans Jaeger)
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("Unable to reach database", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Connected to Postgres")
	return dbPool
}

func mustTokenValidator(cfg config.Config) ports.TokenValidator {
	if cfg.JWTPublicKeyPath != "" {
		pem, err := os.ReadFile(cfg.JWTPublicKeyPath)
		if err != nil {
			slog.Error("Unable to read JWT public key", "path", cfg.JWTPublicKeyPath, "error", err)
			os.Exit(1)
		}
		v, err := security.NewJWTValidator(pem, cfg.JWTIssuer)
		if err != nil {
			slog.Error("Invalid JWT public key", "error", err)
			os.Exit(1)
		}
		return v
	}
	if cfg.IsLocal() {
		slog.Warn("⚠️ No JWT_PUBLIC_KEY_PATH: accepting dev tokens \"<user_id>[:<username>]\"")
		return security.DevValidator{}
	}
	slog.Error("JWT_PUBLIC_KEY_PATH is required outside local env")
	os.Exit(1)
	return nil
}
