package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regpay/internal/upstream"
	dErrors "regpay/pkg/domain-errors"
)

func newService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(upstream.New(srv.URL+"/api", logger), logger)
}

func TestInitialize(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/payments/initialize", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "FSL7284S789QKEDBEF", body["reference"])
		assert.Equal(t, float64(500000), body["amount"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"authorization_url": "https://pay.example.com/abc123",
				"access_code":       "abc123",
			},
		})
	})
	svc := newService(t, mux)

	init, err := svc.Initialize(context.Background(), InitializeRequest{
		Reference:   "FSL7284S789QKEDBEF",
		Email:       "aminu@example.com",
		AmountMinor: 500000,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/abc123", init.AuthorizationURL)
	assert.Equal(t, "abc123", init.AccessCode)
	// The backend echoed no reference, so the request's own is kept.
	assert.Equal(t, "FSL7284S789QKEDBEF", init.Reference)
}

func TestInitializeWithoutAuthorizationURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/payments/initialize", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
	})
	svc := newService(t, mux)

	_, err := svc.Initialize(context.Background(), InitializeRequest{Reference: "x", Email: "a@b.c"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeHTTP))
}

func TestVerifyRequiresReference(t *testing.T) {
	svc := newService(t, http.NewServeMux())

	_, err := svc.Verify(context.Background(), "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoReference))
}

func TestVerifyNormalizesStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/payments/verify", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FSL7284S789QKEDBEF", r.URL.Query().Get("reference"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"reference": "FSL7284S789QKEDBEF",
				"status":    "Successful",
				"amount":    500000,
				"paidAt":    "2024-07-25T14:30:00Z",
			},
		})
	})
	svc := newService(t, mux)

	verified, err := svc.Verify(context.Background(), "FSL7284S789QKEDBEF")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, verified.Status)
	assert.Equal(t, int64(500000), verified.AmountMinor)
}

func TestVerifyReceipt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/receipts/verify/FSL7284S789QKEDBEF", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"reference": "FSL7284S789QKEDBEF",
				"status":    "success",
				"amount":    "500000",
			},
		})
	})
	svc := newService(t, mux)

	verified, err := svc.VerifyReceipt(context.Background(), "FSL7284S789QKEDBEF")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, verified.Status)
	assert.Equal(t, int64(500000), verified.AmountMinor)
}

func TestReceiptNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/receipts/UNKNOWN", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "receipt not found"})
	})
	svc := newService(t, mux)

	_, err := svc.Receipt(context.Background(), "UNKNOWN")
	require.Error(t, err)

	var domainErr *dErrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
}
