package event

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

func validRequest() RegistrationRequest {
	return RegistrationRequest{
		FirstName:           "Aminu",
		Surname:             "Bello",
		Sex:                 "Male",
		DateOfBirth:         "2008-03-14",
		Age:                 16,
		StateOfResidence:    "Kaduna",
		StateOfOrigin:       "Kano",
		PositionOfPlay:      "Midfielder",
		GuardianFullName:    "Musa Bello",
		GuardianPhoneNumber: "+2348012345678",
		Email:               "aminu@example.com",
	}
}

func TestValidateMissingFieldsAreListedSorted(t *testing.T) {
	req := validRequest()
	req.Surname = ""
	req.GuardianPhoneNumber = "  "

	err := req.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "guardianPhoneNumber, surname")
}

func TestValidateNegativeAge(t *testing.T) {
	req := validRequest()
	req.Age = -1

	err := req.Validate()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCurrent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"name": "Scholarship Screening", "amount": 500000, "currency": "NGN"},
		})
	})
	svc := newService(t, mux)

	info, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Scholarship Screening", info.Name)
	assert.Equal(t, int64(500000), info.AmountMinor)
	assert.Equal(t, "NGN", info.Currency)
}

func TestRegisterExtractsReferenceSpellings(t *testing.T) {
	cases := []map[string]any{
		{"registrationId": "REG-1", "reference": "FSL7284S789QKEDBEF"},
		{"registration_id": "REG-1", "trxref": "FSL7284S789QKEDBEF"},
		{"id": float64(41), "reference": "FSL7284S789QKEDBEF"},
	}
	for _, payload := range cases {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/events/register", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": payload})
		})
		svc := newService(t, mux)

		result, err := svc.Register(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Equal(t, "FSL7284S789QKEDBEF", result.Reference)
		assert.NotEmpty(t, result.RegistrationID)
	}
}

func TestRegisterWithoutReferenceFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"id": "REG-1"}})
	})
	svc := newService(t, mux)

	_, err := svc.Register(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeHTTP))
}

func TestRegisterValidationNeverReachesNetwork(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { hits++ })
	svc := newService(t, mux)

	req := validRequest()
	req.FirstName = ""
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Zero(t, hits)
}
