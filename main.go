package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/watchlight/internal/adapters/authsource"
	"github.com/Amund211/watchlight/internal/adapters/docsource"
	"github.com/Amund211/watchlight/internal/app"
	"github.com/Amund211/watchlight/internal/cache"
	"github.com/Amund211/watchlight/internal/config"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/logging"
	"github.com/Amund211/watchlight/internal/registry"
	"github.com/Amund211/watchlight/internal/reporting"
	"github.com/Amund211/watchlight/internal/scheduler"
	"github.com/Amund211/watchlight/internal/telemetry"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Watches the document keys given as command line arguments until
// interrupted, logging every cache update as it lands.
func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.AddToContext(ctx, logger)

	flush, err := reporting.InitOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	ctx = reporting.AttachHubToContext(ctx)
	ctx = reporting.SetStartedAtInContext(ctx, time.Now())
	ctx = reporting.AddTagsToContext(ctx, map[string]string{"instanceID": instanceID})
	logger.Info("Initialized Sentry")

	shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "watchlight")
	if err != nil {
		fail("Failed to initialize OpenTelemetry", "error", err.Error())
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()

	sched, stopSched := scheduler.NewTTL()
	defer stopSched()

	store := cache.NewStore(
		cache.WithPublishHook(func(snapshot cache.Snapshot) {
			logger.Debug("Cache updated", "entries", len(snapshot))
		}),
	)

	clientOptions := []registry.ClientOption{registry.WithLogger(logger)}
	if delay := conf.EvictionDelay(); delay > 0 {
		clientOptions = append(clientOptions, registry.WithDefaultEvictionDelay(delay))
	}
	client, err := registry.NewClient(store, sched, clientOptions...)
	if err != nil {
		fail("Failed to initialize registry client", "error", err.Error())
	}

	handle := registry.NewHandle()
	handle.Bind(client)

	documents, authState := buildSources(ctx, conf, logger, fail)

	client.WatchAuthState(ctx, authState)

	watch := app.BuildWatchEntity(handle)
	teardown := app.BuildTeardownLeasee(handle)

	leasee := "cli:" + instanceID
	for _, name := range os.Args[1:] {
		key := keys.Key{"documents", name}
		tuple, err := watch(ctx, key, leasee, registry.Subscription{Source: documents}, nil)
		if err != nil {
			fail("Failed to watch document", "name", name, "error", err.Error())
		}
		logger.Info("Watching document", "name", name, "status", string(tuple.Status))
	}

	logger.Info("Init complete")
	<-ctx.Done()

	if err := teardown(context.WithoutCancel(ctx), leasee); err != nil {
		logger.Error("Failed to release claims", "error", err.Error())
	}
	logger.Info("Shutdown")
}

// In development everything runs in-process: documents live in a memory
// source and a fake user is signed in so the auth key has something to show.
func buildSources(ctx context.Context, conf config.Config, logger *slog.Logger, fail func(msg string, args ...any)) (docsource.Source, authsource.Source) {
	if conf.RedisAddr() == "" {
		if !conf.IsDevelopment() {
			fail("Missing Redis address")
		}
		memory := docsource.NewMemory()
		auth := authsource.NewMemory()
		auth.SignIn(authsource.User{UID: "dev", DisplayName: "Developer"})
		return memory, auth
	}

	redisClient := redis.NewClient(&redis.Options{Addr: conf.RedisAddr()})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fail("Failed to connect to Redis", "error", err.Error())
	}
	logger.Info("Connected to Redis", "addr", conf.RedisAddr())

	auth := authsource.NewMemory()
	auth.SignIn(authsource.User{UID: "dev", DisplayName: "Developer"})
	return docsource.NewRedis(redisClient, logger.With("component", "docsource")), auth
}
