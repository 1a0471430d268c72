package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/salonflow/backend/libs/config"
	"github.com/salonflow/backend/libs/db"
	"github.com/salonflow/backend/libs/httpx"
	"github.com/salonflow/backend/libs/kafkax"
	libotel "github.com/salonflow/backend/libs/otel"
	"github.com/salonflow/backend/libs/runtime"
	"github.com/salonflow/backend/services/booking-service/internal/audit"
	"github.com/salonflow/backend/services/booking-service/internal/booking"
	"github.com/salonflow/backend/services/booking-service/internal/cache"
	"github.com/salonflow/backend/services/booking-service/internal/handlers"
	"github.com/salonflow/backend/services/booking-service/internal/live"
	"github.com/salonflow/backend/services/booking-service/internal/outbox"
	"github.com/salonflow/backend/services/booking-service/internal/pricing"
	"github.com/salonflow/backend/services/booking-service/internal/storage"
	"github.com/salonflow/backend/services/booking-service/internal/sweep"
)

const serviceName = "booking-service"

// hubPublisher bridges the lifecycle manager's live events onto the hub.
type hubPublisher struct{ hub *live.Hub }

func (p hubPublisher) Publish(ctx context.Context, ev booking.LiveEvent) {
	p.hub.Publish(ctx, live.Event{
		Kind:          ev.Kind,
		MasterID:      ev.MasterID,
		AppointmentID: ev.AppointmentID,
		Status:        ev.Status,
	})
}

func main() {
	logger := runtime.NewLogger(serviceName)
	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8081")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	redisAddr := config.String("REDIS_ADDR", "localhost:6379")
	brokers := kafkax.Brokers(config.String("KAFKA_BROKERS", "localhost:9092"))
	salonTZ := config.String("SALON_TZ", "UTC")
	cacheTTL := config.Seconds("SLOT_CACHE_TTL_SECONDS", 30*time.Second)
	sweepEvery := config.Seconds("SWEEP_INTERVAL_SECONDS", time.Minute)

	loc, err := time.LoadLocation(salonTZ)
	if err != nil {
		logger.Error("invalid SALON_TZ", "tz", salonTZ, "err", err)
		os.Exit(1)
	}

	shutdownTracing, err := libotel.Setup(ctx, serviceName)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "err", err)
		}
	}()

	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	appointments := storage.NewAppointmentRepository(pool)
	schedule := storage.NewScheduleRepository(pool)
	events := outbox.NewRepository(pool)
	recorder := audit.NewRecorder(pool)
	slotCache := cache.NewSlotCache(rdb, cacheTTL)
	hub := live.NewHub(rdb, logger)

	svc := booking.NewService(booking.Config{
		Appointments: appointments,
		Schedule:     schedule,
		Events:       events,
		Audit:        recorder,
		Cache:        slotCache,
		Live:         hubPublisher{hub: hub},
		Pricing:      pricing.NewStaticProvider(),
		Logger:       logger,
		Location:     loc,
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.NewBookingHandler(svc, logger).Register(mux)
	handlers.NewScheduleHandler(schedule, svc, slotCache, logger).Register(mux)
	handlers.NewLiveHandler(hub, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, serviceName)

	publisher := outbox.NewPublisher(events, brokers, logger)
	go publisher.Run(ctx)
	go hub.Run(ctx)
	sweeper := sweep.New(appointments, svc, logger, sweepEvery)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
	}()

	logger.Info("booking-service listening", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("booking-service stopped")
}
