// Package admin drives the console operations: account management, event
// administration, registration and payment paging, CSV export and receipt
// validation. Every call except Login and Register requires an active session
// and fails locally with an unauthenticated error before touching the
// backend.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"regpay/internal/event"
	"regpay/internal/payment"
	"regpay/internal/platform/device"
	"regpay/internal/session"
	"regpay/internal/upstream"
	dErrors "regpay/pkg/domain-errors"
	"regpay/pkg/requestcontext"
)

// Credentials carry an admin login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordChange carries a password rotation request.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// FeeChange updates the screening fee on the live event, in minor units.
type FeeChange struct {
	AmountMinor int64 `json:"amount"`
}

// Listing is one page of a console listing (registrations or payments),
// passed through from the backend with paging metadata normalized.
type Listing struct {
	Rows       json.RawMessage `json:"rows"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"totalPages"`
}

// Export is a CSV download passed through byte for byte.
type Export struct {
	Body        []byte
	ContentType string
}

// Service implements the admin console against the backend API.
type Service struct {
	client       *upstream.Client
	sessions     *session.Manager
	payments     *payment.Service
	logger       *slog.Logger
	adminTimeout time.Duration
	longTimeout  time.Duration
}

// NewService builds an admin service. adminTimeout guards interactive calls,
// longTimeout guards the export.
func NewService(client *upstream.Client, sessions *session.Manager, payments *payment.Service, logger *slog.Logger, adminTimeout, longTimeout time.Duration) *Service {
	return &Service{
		client:       client,
		sessions:     sessions,
		payments:     payments,
		logger:       logger.With(slog.String("component", "admin")),
		adminTimeout: adminTimeout,
		longTimeout:  longTimeout,
	}
}

// Login authenticates against the backend and establishes the local session.
func (s *Service) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	return s.authenticate(ctx, "/admin/login", creds)
}

// Register creates a new admin account upstream. The backend issues a token
// for the fresh account, so a successful call also establishes the local
// session.
func (s *Service) Register(ctx context.Context, creds Credentials) (*session.Session, error) {
	return s.authenticate(ctx, "/admin/register", creds)
}

func (s *Service) authenticate(ctx context.Context, path string, creds Credentials) (*session.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}

	env, err := s.client.Post(ctx, path, upstream.RequestOptions{
		Timeout: s.adminTimeout,
		Body:    creds,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expiresIn"`
	}
	if err := json.Unmarshal(env.Payload(), &payload); err != nil || payload.Token == "" {
		// Some deployments nest the token one level down.
		var nested struct {
			Data struct {
				Token     string `json:"token"`
				ExpiresIn int64  `json:"expiresIn"`
			} `json:"data"`
		}
		if err := json.Unmarshal(env.Payload(), &nested); err != nil || nested.Data.Token == "" {
			return nil, dErrors.New(dErrors.CodeHTTP, "login response carried no token")
		}
		payload.Token = nested.Data.Token
		payload.ExpiresIn = nested.Data.ExpiresIn
	}

	expiresIn := time.Duration(payload.ExpiresIn) * time.Second
	if err := s.sessions.Establish(ctx, payload.Token, creds.Email, expiresIn); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "admin session established",
		slog.String("email", creds.Email),
		slog.String("ip", requestcontext.ClientIP(ctx)),
		slog.String("device", device.Summary(requestcontext.UserAgent(ctx))))
	return s.sessions.Current(ctx)
}

// Logout clears the local session. The backend holds no server-side session
// state, so there is no upstream call.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Logout(ctx)
}

// ChangePassword rotates the admin password and then invalidates the local
// session so the operator has to log in again with the new credential.
func (s *Service) ChangePassword(ctx context.Context, change PasswordChange) error {
	if err := s.requireSession(ctx); err != nil {
		return err
	}
	if change.CurrentPassword == "" || change.NewPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "current and new password are required")
	}

	_, err := s.client.Post(ctx, "/admin/change-password", upstream.RequestOptions{
		Timeout: s.adminTimeout,
		Body:    change,
	})
	if err != nil {
		return err
	}

	if err := s.sessions.Logout(ctx); err != nil {
		s.logger.WarnContext(ctx, "session clear after password change failed", slog.Any("error", err))
	}
	return nil
}

// CreateEvent defines a new screening event upstream. The payload echoes the
// backend's view of the created event.
func (s *Service) CreateEvent(ctx context.Context, draft event.Info) (json.RawMessage, error) {
	if err := s.requireSession(ctx); err != nil {
		return nil, err
	}
	if draft.Name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "event name is required")
	}

	env, err := s.client.Post(ctx, "/admin/events", upstream.RequestOptions{
		Timeout: s.adminTimeout,
		Body:    draft,
	})
	if err != nil {
		return nil, err
	}
	return env.Payload(), nil
}

// UpdateEventFee changes the screening fee on the live event.
func (s *Service) UpdateEventFee(ctx context.Context, change FeeChange) (json.RawMessage, error) {
	if err := s.requireSession(ctx); err != nil {
		return nil, err
	}
	if change.AmountMinor <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be a positive minor-unit value")
	}

	env, err := s.client.Put(ctx, "/admin/events/amount", upstream.RequestOptions{
		Timeout: s.adminTimeout,
		Body:    change,
	})
	if err != nil {
		return nil, err
	}
	return env.Payload(), nil
}

// Registrations fetches one page of the registrations listing.
func (s *Service) Registrations(ctx context.Context, page, limit int) (*Listing, error) {
	return s.listing(ctx, "/admin/registrations", page, limit)
}

// Payments fetches one page of the payments listing.
func (s *Service) Payments(ctx context.Context, page, limit int) (*Listing, error) {
	return s.listing(ctx, "/admin/payments", page, limit)
}

func (s *Service) listing(ctx context.Context, path string, page, limit int) (*Listing, error) {
	if err := s.requireSession(ctx); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 20
	}

	env, err := s.client.Get(ctx, path, upstream.RequestOptions{
		Timeout: s.adminTimeout,
		Params: map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		},
	})
	if err != nil {
		return nil, err
	}

	return decodeListing(env.Payload(), page, limit)
}

// RegistrationByID fetches a single registration record as the backend
// stores it.
func (s *Service) RegistrationByID(ctx context.Context, id string) (json.RawMessage, error) {
	if err := s.requireSession(ctx); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration id is required")
	}

	env, err := s.client.Get(ctx, "/admin/registrations/"+id, upstream.RequestOptions{
		Timeout: s.adminTimeout,
	})
	if err != nil {
		return nil, err
	}
	return env.Payload(), nil
}

// ExportCSV streams the full registrations export. The payload is opaque
// bytes; no JSON decoding happens on this path.
func (s *Service) ExportCSV(ctx context.Context) (*Export, error) {
	if err := s.requireSession(ctx); err != nil {
		return nil, err
	}

	body, contentType, err := s.client.GetRaw(ctx, "/admin/export", upstream.RequestOptions{
		Timeout: s.longTimeout,
	})
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "text/csv"
	}
	return &Export{Body: body, ContentType: contentType}, nil
}

// ValidateReceipt checks a receipt reference on behalf of an operator.
func (s *Service) ValidateReceipt(ctx context.Context, reference string) (*payment.VerifiedPayment, error) {
	if err := s.requireSession(ctx); err != nil {
		return nil, err
	}
	return s.payments.VerifyReceipt(ctx, reference)
}

func (s *Service) requireSession(ctx context.Context) error {
	if !s.sessions.IsValid(ctx) {
		return dErrors.New(dErrors.CodeUnauthenticated, "admin session is missing or expired")
	}
	return nil
}

func decodeListing(payload json.RawMessage, page, limit int) (*Listing, error) {
	var body struct {
		Registrations json.RawMessage `json:"registrations"`
		Payments      json.RawMessage `json:"payments"`
		Rows          json.RawMessage `json:"rows"`
		Data          json.RawMessage `json:"data"`
		Page          int             `json:"page"`
		Limit         int             `json:"limit"`
		Total         int64           `json:"total"`
		TotalPages    int             `json:"totalPages"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		// A bare array is also a valid listing shape.
		var rows []json.RawMessage
		if arrErr := json.Unmarshal(payload, &rows); arrErr != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeHTTP, "malformed listing")
		}
		return &Listing{Rows: payload, Page: page, Limit: limit, Total: int64(len(rows)), TotalPages: 1}, nil
	}

	rows := body.Registrations
	if len(rows) == 0 {
		rows = body.Payments
	}
	if len(rows) == 0 {
		rows = body.Rows
	}
	if len(rows) == 0 {
		rows = body.Data
	}
	if len(rows) == 0 {
		rows = json.RawMessage("[]")
	}
	if body.Page == 0 {
		body.Page = page
	}
	if body.Limit == 0 {
		body.Limit = limit
	}
	if body.TotalPages == 0 && body.Total > 0 && body.Limit > 0 {
		body.TotalPages = int((body.Total + int64(body.Limit) - 1) / int64(body.Limit))
	}

	return &Listing{
		Rows:       rows,
		Page:       body.Page,
		Limit:      body.Limit,
		Total:      body.Total,
		TotalPages: body.TotalPages,
	}, nil
}
