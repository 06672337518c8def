package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/hotel-booking-web/internal/adapters/mongo"
	"github.com/robertarktes/hotel-booking-web/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/hotel-booking-web/internal/adapters/redis"
	"github.com/robertarktes/hotel-booking-web/internal/api"
	"github.com/robertarktes/hotel-booking-web/internal/config"
	httphandler "github.com/robertarktes/hotel-booking-web/internal/http"
	"github.com/robertarktes/hotel-booking-web/internal/idempotency"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/rateLimit"
)

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host + ":" + mapped.Port()
}

// fakeHotelAPI answers the handful of endpoints the cancel flow touches.
func fakeHotelAPI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":7,"email":"guest@hotel.test","token":"jwt-guest","roles":["ROLE_USER"]}`)
	})
	mux.HandleFunc("GET /api/bookings/user/7/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer jwt-guest" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `[{"id":11,"room":{"id":2,"roomType":"DOUBLE"},"checkIn":"2024-05-01","checkOut":"2024-05-03","bookingCode":"C11","status":"CONFIRMED"}]`)
	})
	mux.HandleFunc("DELETE /api/bookings/11/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestIntegration_CancelFromHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("starts containers")
	}
	ctx := context.Background()

	redisAddr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
	}, "6379")
	mongoAddr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}, "27017")
	rabbitAddr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(2 * time.Minute),
	}, "5672")

	hotel := fakeHotelAPI(t)
	cfg := &config.Config{
		APIBaseURL:      hotel.URL,
		RequestTimeout:  5 * time.Second,
		SessionTTL:      time.Hour,
		IdempotencyTTL:  time.Hour,
		HistoryPageSize: 5,
		RateLimitPerMin: 100,
	}
	logger := observability.NewNopLogger()

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: redisAddr})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessions := redisadapter.NewSessionStore(redisClient)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+mongoAddr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mongoClient.Disconnect(context.Background()) })
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("hotel_it"), logger)

	conn, err := amqp.Dial("amqp://guest:guest@" + rabbitAddr + "/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	consumer, err := rabbit.NewConsumer(conn, "hotel.notifications.it", logger)
	require.NoError(t, err)
	pub, err := rabbit.NewPublisher(conn)
	require.NoError(t, err)

	received := make(chan notify.Notification, 4)
	consumeCtx, stopConsuming := context.WithCancel(ctx)
	t.Cleanup(stopConsuming)
	go func() {
		_ = consumer.Run(consumeCtx, func(_ context.Context, n notify.Notification) error {
			received <- n
			return nil
		})
	}()

	handlers := httphandler.NewHandlers(httphandler.Deps{
		Config:    cfg,
		API:       api.New(cfg.APIBaseURL, nil, api.WithTimeout(cfg.RequestTimeout)),
		Sessions:  sessions,
		Notifier:  notify.Multi{audit, pub},
		RoomAudit: audit,
		Audit:     audit,
		Logger:    logger,
	})
	rl := rateLimit.NewRateLimiter(redisadapter.NewCache(redisClient), cfg.RateLimitPerMin, time.Minute)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, rl, idemp))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json", strings.NewReader(`{"email":"guest@hotel.test","password":"secret"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sid string
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			sid = c.Value
		}
	}
	require.NotEmpty(t, sid)

	stored, err := sessions.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "jwt-guest", stored.Token)

	call := func(method, path string) *http.Response {
		req, err := http.NewRequestWithContext(ctx, method, srv.URL+path, nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	history := call(http.MethodGet, "/v1/history")
	require.Equal(t, http.StatusOK, history.StatusCode)

	cancel := call(http.MethodPost, "/v1/history/11/cancel")
	require.Equal(t, http.StatusOK, cancel.StatusCode)

	select {
	case n := <-received:
		assert.Equal(t, notify.KindSuccess, n.Kind)
		assert.Equal(t, int64(11), n.BookingID)
	case <-time.After(10 * time.Second):
		t.Fatal("notification was not delivered")
	}

	entries, err := audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "booking.cancel.success", entries[0].Action)
	assert.Equal(t, "7", entries[0].UserID)

	var body struct {
		Page struct {
			Rows []struct {
				Status string `json:"status"`
			} `json:"rows"`
		} `json:"page"`
	}
	after := call(http.MethodGet, "/v1/history")
	require.NoError(t, json.NewDecoder(after.Body).Decode(&body))
	require.Len(t, body.Page.Rows, 1)
	assert.Equal(t, "FAILED", body.Page.Rows[0].Status)
}
