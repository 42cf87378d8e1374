// Package event is the typed call site for the backend's event and
// registration endpoints.
package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"regpay/internal/upstream"
	dErrors "regpay/pkg/domain-errors"
)

// Info describes the current screening event and its fee.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// AmountMinor is the screening fee in the currency's minor unit.
	AmountMinor int64 `json:"amount"`
	Currency    string `json:"currency,omitempty"`
}

// RegistrationRequest is the applicant biodata submitted for an event.
type RegistrationRequest struct {
	FirstName           string `json:"firstName"`
	Surname             string `json:"surname"`
	Sex                 string `json:"sex"`
	DateOfBirth         string `json:"dateOfBirth"`
	Age                 int    `json:"age"`
	StateOfResidence    string `json:"stateOfResidence"`
	StateOfOrigin       string `json:"stateOfOrigin"`
	PositionOfPlay      string `json:"positionOfPlay"`
	GuardianFullName    string `json:"guardianFullName"`
	GuardianPhoneNumber string `json:"guardianPhoneNumber"`
	Email               string `json:"email"`
}

// Validate runs the field checks that must pass before anything reaches the
// network.
func (r *RegistrationRequest) Validate() error {
	required := map[string]string{
		"firstName":           r.FirstName,
		"surname":             r.Surname,
		"sex":                 r.Sex,
		"dateOfBirth":         r.DateOfBirth,
		"stateOfOrigin":       r.StateOfOrigin,
		"guardianFullName":    r.GuardianFullName,
		"guardianPhoneNumber": r.GuardianPhoneNumber,
	}
	var missing []string
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(sorted(missing), ", "))
	}
	if r.Age < 0 {
		return dErrors.New(dErrors.CodeValidation, "age cannot be negative")
	}
	return nil
}

// RegistrationResult is the normalized outcome of a registration call.
type RegistrationResult struct {
	RegistrationID string
	Reference      string
}

// Service exposes the event endpoints of the backend API.
type Service struct {
	client *upstream.Client
	logger *slog.Logger
}

// NewService creates the event domain service.
func NewService(client *upstream.Client, logger *slog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Current fetches the live event and fee information.
func (s *Service) Current(ctx context.Context) (*Info, error) {
	env, err := s.client.Get(ctx, "/events", upstream.RequestOptions{})
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(env.Payload(), &info); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeHTTP, "malformed event response")
	}
	return &info, nil
}

// Register submits the applicant biodata and returns the issued payment
// reference. Validation failures never leave the process.
func (s *Service) Register(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	env, err := s.client.Post(ctx, "/events/register", upstream.RequestOptions{Body: req})
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(env.Payload(), &m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeHTTP, "malformed registration response")
	}
	result := &RegistrationResult{
		RegistrationID: firstString(m, "registrationId", "registration_id", "id"),
		Reference:      firstString(m, "reference", "trxref"),
	}
	if result.Reference == "" {
		return nil, dErrors.New(dErrors.CodeHTTP, "registration response carried no payment reference")
	}
	return result, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		case float64:
			// Some backend builds issue numeric registration IDs.
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func sorted(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
