package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regpay/internal/admin"
	"regpay/internal/event"
	"regpay/internal/payment"
	"regpay/internal/platform/config"
	"regpay/internal/reconcile"
	"regpay/internal/registration"
	"regpay/internal/registration/store"
	"regpay/internal/session"
	"regpay/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gatewayFixture struct {
	server    *httptest.Server
	snapshots *store.InMemory
	sessions  *session.Manager
}

// newGateway stands up the full stack against a fake backend. The engine
// sleeps are no-ops so exhausted runs finish instantly.
func newGateway(t *testing.T, backend http.Handler) *gatewayFixture {
	t.Helper()

	backendSrv := httptest.NewServer(backend)
	t.Cleanup(backendSrv.Close)

	logger := testLogger()
	sessions := session.NewManager(session.NewInMemoryStore(), logger)
	client := upstream.New(backendSrv.URL+"/api", logger, upstream.WithTokenSource(sessions))

	events := event.NewService(client, logger)
	payments := payment.NewService(client, logger)
	admins := admin.NewService(client, sessions, payments, logger, 2*time.Second, 2*time.Second)

	snapshots := store.NewInMemory()
	engine := reconcile.NewEngine(payments, snapshots, logger,
		reconcile.WithLabels("FOSLA Academy", "Scholarship Screening"),
		reconcile.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)

	cfg := &config.Config{
		DefaultTimeout: 5 * time.Second,
		AdminTimeout:   5 * time.Second,
		LongTimeout:    10 * time.Second,
	}

	h := NewHandler(events, payments, admins, engine, snapshots, client, nil, logger)
	gw := httptest.NewServer(NewRouter(h, cfg, logger))
	t.Cleanup(gw.Close)

	return &gatewayFixture{server: gw, snapshots: snapshots, sessions: sessions}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var env map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func validRegistration() map[string]any {
	return map[string]any{
		"firstName":           "Aminu",
		"surname":             "Bello",
		"sex":                 "Male",
		"dateOfBirth":         "2008-03-14",
		"age":                 16,
		"stateOfResidence":    "Kaduna",
		"stateOfOrigin":       "Kano",
		"positionOfPlay":      "Midfielder",
		"guardianFullName":    "Musa Bello",
		"guardianPhoneNumber": "+2348012345678",
		"email":               "aminu@example.com",
	}
}

func registrationBackend() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"name": "Scholarship Screening", "amount": 500000},
		})
	})
	mux.HandleFunc("/api/events/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"registrationId": "REG-001",
				"reference":      "FSL7284S789QKEDBEF",
			},
		})
	})
	mux.HandleFunc("/api/payments/initialize", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"authorization_url": "https://pay.example.com/abc123",
				"access_code":       "abc123",
				"reference":         "FSL7284S789QKEDBEF",
			},
		})
	})
	return mux
}

func TestRegisterFlow(t *testing.T) {
	gw := newGateway(t, registrationBackend())

	resp := postJSON(t, gw.server.URL+"/api/registrations", validRegistration())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "FSL7284S789QKEDBEF", data["reference"])
	assert.Equal(t, "https://pay.example.com/abc123", data["authorizationUrl"])

	// The snapshot must be durable before the response went out.
	snap, err := gw.snapshots.Get(context.Background(), "FSL7284S789QKEDBEF")
	require.NoError(t, err)
	assert.Equal(t, "Aminu", snap.FirstName)
	assert.Equal(t, "REG-001", snap.RegistrationID)
	assert.False(t, snap.CapturedAt.IsZero())
}

func TestRegisterSnapshotKeyedByInitializedReference(t *testing.T) {
	// The payment backend may canonicalize the reference on initialize; the
	// snapshot must live under the reference the provider will round-trip.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"name": "Scholarship Screening", "amount": 500000},
		})
	})
	mux.HandleFunc("/api/events/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"registrationId": "REG-001",
				"reference":      "FSL7284S789QKEDBEF",
			},
		})
	})
	mux.HandleFunc("/api/payments/initialize", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"authorization_url": "https://pay.example.com/abc123",
				"reference":         "FSL7284S789QKEDBEF-C",
			},
		})
	})
	gw := newGateway(t, mux)

	resp := postJSON(t, gw.server.URL+"/api/registrations", validRegistration())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "FSL7284S789QKEDBEF-C", data["reference"])

	snap, err := gw.snapshots.Get(context.Background(), "FSL7284S789QKEDBEF-C")
	require.NoError(t, err)
	assert.Equal(t, "Aminu", snap.FirstName)
}

func TestRegisterValidationFailsBeforeBackend(t *testing.T) {
	var backendHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events/register", func(w http.ResponseWriter, r *http.Request) { backendHits++ })
	gw := newGateway(t, mux)

	body := validRegistration()
	delete(body, "guardianPhoneNumber")
	resp := postJSON(t, gw.server.URL+"/api/registrations", body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "validation_failed", env["error"])
	assert.Contains(t, env["message"], "guardianPhoneNumber")
	assert.Zero(t, backendHits)
}

func TestEventEndpoint(t *testing.T) {
	gw := newGateway(t, registrationBackend())

	resp, err := http.Get(gw.server.URL + "/api/events")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "Scholarship Screening", data["name"])
	assert.Equal(t, float64(500000), data["amount"])
}

func verifyBackend(status string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/payments/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"reference": r.URL.Query().Get("reference"),
				"status":    status,
				"amount":    500000,
				"paidAt":    "2024-07-25T14:30:00Z",
			},
		})
	})
	return mux
}

func TestReceiptPaid(t *testing.T) {
	gw := newGateway(t, verifyBackend("success"))
	seedGatewaySnapshot(t, gw)

	resp, err := http.Get(gw.server.URL + "/api/receipts/FSL7284S789QKEDBEF")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "PAID", data["state"])
	assert.Equal(t, float64(1), data["attempts"])

	receipt := data["receipt"].(map[string]any)
	assert.Equal(t, "Aminu Bello", receipt["studentName"])
	assert.Equal(t, "₦5,000.00", receipt["amountDisplay"])
	assert.Equal(t, "PAID", receipt["status"])
}

func TestPaymentReconcileAcceptsTrxref(t *testing.T) {
	gw := newGateway(t, verifyBackend("success"))

	resp, err := http.Get(gw.server.URL + "/api/payments/reconcile?trxref=FSL7284S789QKEDBEF")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "PAID", data["state"])
}

func TestReceiptMissingReference(t *testing.T) {
	gw := newGateway(t, verifyBackend("success"))

	resp, err := http.Get(gw.server.URL + "/api/payments/reconcile")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, "no_reference", env["error"])
}

func TestReceiptFallsBackToSnapshotWhenBackendDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/payments/verify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	gw := newGateway(t, mux)
	seedGatewaySnapshot(t, gw)

	resp, err := http.Get(gw.server.URL + "/api/receipts/FSL7284S789QKEDBEF")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "UNREACHABLE", data["state"])

	receipt := data["receipt"].(map[string]any)
	assert.Equal(t, "PENDING", receipt["status"])
	assert.Equal(t, true, receipt["fromCache"])
	assert.NotEmpty(t, receipt["disclaimer"])
}

func TestReceiptFailedPayment(t *testing.T) {
	gw := newGateway(t, verifyBackend("failed"))

	resp, err := http.Get(gw.server.URL + "/api/receipts/FSL7284S789QKEDBEF")
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, "payment_failed", env["error"])
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	gw := newGateway(t, http.NewServeMux())

	for _, path := range []string{
		"/api/admin/registrations",
		"/api/admin/registrations/REG-001",
		"/api/admin/payments",
		"/api/admin/export",
	} {
		resp, err := http.Get(gw.server.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)

		env := decodeEnvelope(t, resp)
		assert.Equal(t, "unauthenticated", env["error"], path)
	}
}

func TestAdminEventManagement(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"token": "jwt-abc", "expiresIn": 3600},
		})
	})
	mux.HandleFunc("/api/admin/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"id": "EVT-02", "name": "U15 Trials"},
		})
	})
	mux.HandleFunc("/api/admin/events/amount", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"amount": 600000}})
	})
	gw := newGateway(t, mux)

	resp := postJSON(t, gw.server.URL+"/api/admin/login", map[string]string{"email": "a@b.c", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, gw.server.URL+"/api/admin/events", map[string]any{"name": "U15 Trials", "amount": 750000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "EVT-02", data["id"])

	body, err := json.Marshal(map[string]any{"amount": 600000})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, gw.server.URL+"/api/admin/events/amount", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminLoginAndListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"token": "jwt-abc", "expiresIn": 3600},
		})
	})
	mux.HandleFunc("/api/admin/registrations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-abc", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"registrations": []map[string]any{{"reference": "FSL7284S789QKEDBEF"}},
				"total":         1,
			},
		})
	})
	gw := newGateway(t, mux)

	resp := postJSON(t, gw.server.URL+"/api/admin/login", map[string]string{
		"email":    "admin@example.com",
		"password": "pw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "admin@example.com", data["email"])
	assert.NotContains(t, data, "token")

	resp, err := http.Get(gw.server.URL + "/api/admin/registrations?page=1&limit=20")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminExportHeaders(t *testing.T) {
	csv := "firstName,surname\nAminu,Bello\n"
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"token": "jwt-abc", "expiresIn": 3600},
		})
	})
	mux.HandleFunc("/api/admin/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(csv))
	})
	gw := newGateway(t, mux)

	resp := postJSON(t, gw.server.URL+"/api/admin/login", map[string]string{"email": "a@b.c", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(gw.server.URL + "/api/admin/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "registrations.csv")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, csv, buf.String())
}

func TestHealthReportsUnreachableBackend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	gw := newGateway(t, mux)

	resp, err := http.Get(gw.server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data := env["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "unreachable", data["upstream"])
}

func TestContentTypeGuard(t *testing.T) {
	gw := newGateway(t, registrationBackend())

	req, err := http.NewRequest(http.MethodPost, gw.server.URL+"/api/registrations", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func seedGatewaySnapshot(t *testing.T, gw *gatewayFixture) {
	t.Helper()
	require.NoError(t, gw.snapshots.Put(context.Background(), &registration.Snapshot{
		FirstName:  "Aminu",
		Surname:    "Bello",
		Email:      "aminu@example.com",
		Reference:  "FSL7284S789QKEDBEF",
		CapturedAt: time.Date(2024, 7, 25, 14, 0, 0, 0, time.UTC),
	}))
}
