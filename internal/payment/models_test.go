package payment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"success":    StatusPaid,
		"Successful": StatusPaid,
		"PAID":       StatusPaid,
		"failed":     StatusFailed,
		"Failed":     StatusFailed,
		"abandoned":  StatusAbandoned,
		"pending":    StatusPending,
		"processing": StatusPending,
		"":           StatusPending,
		"  queued ":  StatusPending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), "raw status %q", raw)
	}
}

func TestDecodeVerificationCamelCase(t *testing.T) {
	payload := json.RawMessage(`{
		"status": "success",
		"reference": "FSL7284S789QKEDBEF",
		"amount": 500000,
		"paidAt": "2024-07-25T14:30:00Z",
		"firstName": "Aminu",
		"surname": "Bello",
		"guardianFullName": "Fatima Bello"
	}`)

	v, err := decodeVerification(payload, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, v.Status)
	assert.Equal(t, "FSL7284S789QKEDBEF", v.Reference)
	assert.Equal(t, int64(500000), v.AmountMinor)
	assert.Equal(t, time.Date(2024, 7, 25, 14, 30, 0, 0, time.UTC), v.PaidAt)
	assert.Equal(t, "Aminu", v.Biodata.FirstName)
	assert.Equal(t, "Bello", v.Biodata.Surname)
	assert.Equal(t, "Fatima Bello", v.Biodata.GuardianFullName)
}

func TestDecodeVerificationSnakeCase(t *testing.T) {
	payload := json.RawMessage(`{
		"payment_status": "abandoned",
		"trxref": "FSL9",
		"amount_paid": "250000",
		"paid_at": "2024-07-25 14:30:00",
		"first_name": "Eze",
		"last_name": "Ododo",
		"state_of_origin": "Sokoto",
		"guardian_phone_number": "08012345678"
	}`)

	v, err := decodeVerification(payload, "")
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, v.Status)
	assert.Equal(t, "FSL9", v.Reference)
	assert.Equal(t, int64(250000), v.AmountMinor, "numeric strings must still parse")
	assert.False(t, v.PaidAt.IsZero())
	assert.Equal(t, "Eze", v.Biodata.FirstName)
	assert.Equal(t, "Ododo", v.Biodata.Surname)
	assert.Equal(t, "Sokoto", v.Biodata.StateOfOrigin)
	assert.Equal(t, "08012345678", v.Biodata.GuardianPhoneNumber)
}

func TestDecodeVerificationFallbackReference(t *testing.T) {
	v, err := decodeVerification(json.RawMessage(`{"status":"pending"}`), "FSL-FALLBACK")
	require.NoError(t, err)
	assert.Equal(t, "FSL-FALLBACK", v.Reference)
	assert.Equal(t, StatusPending, v.Status)
}

func TestDecodeVerificationUnparseableTimestampKeptRaw(t *testing.T) {
	v, err := decodeVerification(json.RawMessage(`{"status":"success","paid_at":"yesterday-ish"}`), "R")
	require.NoError(t, err)
	assert.True(t, v.PaidAt.IsZero())
	assert.Equal(t, "yesterday-ish", v.PaidAtRaw)
}

func TestDecodeVerificationRejectsNonObject(t *testing.T) {
	_, err := decodeVerification(json.RawMessage(`[1,2,3]`), "R")
	assert.Error(t, err)
}
