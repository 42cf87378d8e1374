// Package payment is the typed call site for the backend's payment
// endpoints. It owns the one place where heterogeneous upstream shapes
// (camelCase and snake_case spellings, nested or flat data) are normalized
// into canonical structs, so no field-guessing leaks into the
// reconciliation engine.
package payment

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Status is the normalized payment status. It is transient: recomputed on
// every verification attempt and never persisted.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusAbandoned Status = "ABANDONED"
)

// NormalizeStatus maps the upstream status strings onto the canonical set.
// Unknown values are PENDING: the webhook that settles the status may simply
// not have landed yet.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "paid":
		return StatusPaid
	case "failed":
		return StatusFailed
	case "abandoned":
		return StatusAbandoned
	default:
		return StatusPending
	}
}

// InitializeRequest starts a hosted payment session for a registration.
type InitializeRequest struct {
	Reference string `json:"reference"`
	Email     string `json:"email"`
	// AmountMinor is in the currency's minor unit (kobo).
	AmountMinor int64 `json:"amount,omitempty"`
}

// InitializedPayment is the normalized result of /payments/initialize.
type InitializedPayment struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// EchoedBiodata is the personal data the verification endpoint echoes back.
// It is best-effort: the upstream schema is not strictly contracted, so every
// field may be empty. The registration snapshot is preferred when present.
type EchoedBiodata struct {
	FirstName           string
	Surname             string
	Sex                 string
	DateOfBirth         string
	Age                 int
	StateOfOrigin       string
	PositionOfPlay      string
	GuardianFullName    string
	GuardianPhoneNumber string
	Email               string
}

// VerifiedPayment is the normalized result of one verification attempt.
type VerifiedPayment struct {
	Reference   string
	Status      Status
	AmountMinor int64
	PaidAt      time.Time
	// PaidAtRaw preserves the upstream timestamp when it does not parse.
	PaidAtRaw string
	Biodata   EchoedBiodata
}

// decodeVerification normalizes a raw verification payload, trying the
// plausible field-name spellings for each concept.
func decodeVerification(payload json.RawMessage, fallbackReference string) (*VerifiedPayment, error) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}

	v := &VerifiedPayment{
		Reference: pickString(m, "reference", "trxref", "transaction_reference"),
		Status:    NormalizeStatus(pickString(m, "status", "payment_status", "paymentStatus")),
	}
	if v.Reference == "" {
		v.Reference = fallbackReference
	}

	v.AmountMinor = pickAmount(m, "amount", "amount_paid", "amountPaid")

	v.PaidAtRaw = pickString(m, "paidAt", "paid_at", "paidDate", "paid_date", "transaction_date", "transactionDate")
	if v.PaidAtRaw != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, v.PaidAtRaw); err == nil {
				v.PaidAt = ts
				break
			}
		}
	}

	v.Biodata = EchoedBiodata{
		FirstName:           pickString(m, "firstName", "first_name"),
		Surname:             pickString(m, "surname", "last_name", "lastName"),
		Sex:                 pickString(m, "sex", "gender"),
		DateOfBirth:         pickString(m, "dateOfBirth", "date_of_birth", "dob"),
		Age:                 int(pickNumber(m, "age")),
		StateOfOrigin:       pickString(m, "stateOfOrigin", "state_of_origin"),
		PositionOfPlay:      pickString(m, "positionOfPlay", "position_of_play", "position"),
		GuardianFullName:    pickString(m, "guardianFullName", "guardian_full_name", "guardianName", "guardian_name"),
		GuardianPhoneNumber: pickString(m, "guardianPhoneNumber", "guardian_phone_number", "guardianPhone", "guardian_phone"),
		Email:               pickString(m, "email"),
	}
	return v, nil
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func pickNumber(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return n
			}
		}
	}
	return 0
}

// pickAmount reads an amount in minor units, tolerating numeric strings.
func pickAmount(m map[string]any, keys ...string) int64 {
	return int64(pickNumber(m, keys...))
}
