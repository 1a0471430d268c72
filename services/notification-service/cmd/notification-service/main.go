package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/salonflow/backend/libs/config"
	"github.com/salonflow/backend/libs/db"
	"github.com/salonflow/backend/libs/kafkax"
	libotel "github.com/salonflow/backend/libs/otel"
	"github.com/salonflow/backend/libs/runtime"
	"github.com/salonflow/backend/services/notification-service/internal/consumer"
	"github.com/salonflow/backend/services/notification-service/internal/notify"
	"github.com/salonflow/backend/services/notification-service/internal/storage"
)

const serviceName = "notification-service"

// storeAdapter maps the consumer's record type onto the repository.
type storeAdapter struct {
	repo *storage.Repository
}

func (a storeAdapter) ClaimEvent(ctx context.Context, eventID, topic string) (bool, error) {
	return a.repo.ClaimEvent(ctx, eventID, topic)
}

func (a storeAdapter) RecordNotification(ctx context.Context, n consumer.Notification) error {
	return a.repo.RecordNotification(ctx, storage.Notification{
		AppointmentID: n.AppointmentID,
		ClientID:      n.ClientID,
		Channel:       n.Channel,
		Subject:       n.Subject,
		Body:          n.Body,
		Status:        n.Status,
		Error:         n.Error,
	})
}

func main() {
	logger := runtime.NewLogger(serviceName)
	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8082")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	brokers := kafkax.Brokers(config.String("KAFKA_BROKERS", "localhost:9092"))
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	channel := config.String("NOTIFY_CHANNEL", "noop")

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

	var sender notify.Sender
	switch channel {
	case "email":
		sender = notify.NewEmailSender(
			config.String("SMTP_HOST", "localhost"),
			config.Int("SMTP_PORT", 587),
			config.String("SMTP_FROM", "no-reply@salonflow.local"),
			config.String("SMTP_USERNAME", ""),
			config.String("SMTP_PASSWORD", ""),
		)
	case "sms":
		url, err := config.RequiredString("SMS_WEBHOOK_URL")
		if err != nil {
			logger.Error("invalid config", "err", err)
			os.Exit(1)
		}
		sender = notify.NewWebhookSMSSender(url, config.String("SMS_API_KEY", ""))
	default:
		sender = notify.NewNoopSender(logger)
	}

	repo := storage.NewRepository(pool)
	cons := consumer.New(brokers, groupID, storeAdapter{repo: repo}, sender, channel, logger)
	go cons.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("GET /api/v1/notifications", listNotifications(repo, logger))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
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

	logger.Info("notification-service listening", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("notification-service stopped")
}

// listNotifications returns the delivery history for the calling client. The
// gateway sets X-Client-Id from the verified token.
func listNotifications(repo *storage.Repository, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.Header.Get("X-Client-Id")
		if clientID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := repo.ListByClient(r.Context(), clientID, limit)
		if err != nil {
			logger.Error("list notifications", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []storage.Notification{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"notifications": items})
	}
}
