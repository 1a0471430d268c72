package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/salonflow/backend/libs/auth"
	"github.com/salonflow/backend/libs/config"
	"github.com/salonflow/backend/libs/httpx"
	libotel "github.com/salonflow/backend/libs/otel"
	"github.com/salonflow/backend/libs/runtime"
)

const serviceName = "gateway-service"

func main() {
	logger := runtime.NewLogger(serviceName)
	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8080")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	bookingURL := config.String("BOOKING_SERVICE_URL", "http://localhost:8081")
	notificationURL := config.String("NOTIFICATION_SERVICE_URL", "http://localhost:8082")
	publicLimit := config.Int("PUBLIC_RATE_LIMIT", 60)
	publicWindow := config.Seconds("PUBLIC_RATE_WINDOW_SECONDS", time.Minute)
	corsOrigins := config.String("CORS_ALLOWED_ORIGINS", "*")
	redisAddr := config.String("REDIS_ADDR", "")

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

	bookingProxy, err := newProxy(bookingURL)
	if err != nil {
		logger.Error("invalid BOOKING_SERVICE_URL", "err", err)
		os.Exit(1)
	}
	notificationProxy, err := newProxy(notificationURL)
	if err != nil {
		logger.Error("invalid NOTIFICATION_SERVICE_URL", "err", err)
		os.Exit(1)
	}

	// A Redis-backed limiter shares the budget across gateway replicas;
	// without Redis the process-local one stands in.
	var limit httpx.Middleware
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limit = httpx.NewRedisRateLimiter(rdb, publicLimit, publicWindow, "gw").Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(publicLimit, publicWindow).Middleware()
	}

	mux := newRouter(bookingProxy, notificationProxy, jwtSecret, limit)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(corsOrigins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
	)
	handler = otelhttp.NewHandler(handler, serviceName)

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

	logger.Info("gateway listening", "port", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

// newRouter wires the public, authenticated and admin route groups in front
// of the upstream service proxies. The anonymous public group strips any
// client-sent identity headers so the booking service only ever sees
// identities this gateway minted; booking itself needs a verified identity
// and stays behind the token check even though it lives on the public path.
func newRouter(booking, notifications http.Handler, jwtSecret string, limit httpx.Middleware) *http.ServeMux {
	mux := runtime.NewBaseMuxWithReady()

	mux.Handle("/api/v1/public/book", limit(requireAuth(jwtSecret, booking)))
	mux.Handle("/api/v1/public/", limit(stripIdentity(booking)))
	mux.Handle("/api/v1/appointments", requireAuth(jwtSecret, booking))
	mux.Handle("/api/v1/appointments/", requireAuth(jwtSecret, booking))
	mux.Handle("/api/v1/notifications", requireAuth(jwtSecret, notifications))
	mux.Handle("/api/v1/admin/", requireRole(jwtSecret, auth.RoleAdmin, booking))

	return mux
}

// stripIdentity removes the trusted identity headers from anonymous
// requests before they reach an upstream.
func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del("X-Client-Id")
		r.Header.Del("X-Role")
		next.ServeHTTP(w, r)
	})
}

func newProxy(rawURL string) (http.Handler, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	// Flush promptly so SSE streams pass through.
	proxy.FlushInterval = 100 * time.Millisecond
	return proxy, nil
}

// requireAuth verifies the bearer token and forwards the identity as
// headers. Any identity headers sent by the client are stripped first.
func requireAuth(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := verify(secret, r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		forwardIdentity(r, claims)
		next.ServeHTTP(w, r)
	})
}

func requireRole(secret, role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := verify(secret, r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != role {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		forwardIdentity(r, claims)
		next.ServeHTTP(w, r)
	})
}

func verify(secret string, r *http.Request) (*auth.Claims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	claims, err := auth.ParseAndVerifyHS256(strings.TrimPrefix(header, "Bearer "), secret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func forwardIdentity(r *http.Request, claims *auth.Claims) {
	r.Header.Del("X-Client-Id")
	r.Header.Del("X-Role")
	r.Header.Set("X-Client-Id", claims.Sub)
	r.Header.Set("X-Role", claims.Role)
}
