package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"regpay/internal/upstream"
	dErrors "regpay/pkg/domain-errors"
)

// Service exposes the payment endpoints of the backend API.
type Service struct {
	client *upstream.Client
	logger *slog.Logger
}

// NewService creates the payment domain service.
func NewService(client *upstream.Client, logger *slog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Initialize starts a hosted payment session and returns the provider
// redirect URL.
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (*InitializedPayment, error) {
	env, err := s.client.Post(ctx, "/payments/initialize", upstream.RequestOptions{Body: req})
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(env.Payload(), &m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeHTTP, "malformed initialize response")
	}

	init := &InitializedPayment{
		AuthorizationURL: pickString(m, "authorization_url", "authorizationUrl", "authorizationURL"),
		AccessCode:       pickString(m, "access_code", "accessCode"),
		Reference:        pickString(m, "reference", "trxref"),
	}
	if init.Reference == "" {
		init.Reference = req.Reference
	}
	if init.AuthorizationURL == "" {
		return nil, dErrors.New(dErrors.CodeHTTP, "initialize response carried no authorization URL")
	}
	return init, nil
}

// Verify polls the payment status for a reference and normalizes the
// response. A verification that succeeds at the transport level always
// yields a VerifiedPayment, even when the status is still pending.
func (s *Service) Verify(ctx context.Context, reference string) (*VerifiedPayment, error) {
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeNoReference, "no payment reference supplied")
	}
	env, err := s.client.Get(ctx, "/payments/verify", upstream.RequestOptions{
		Params: map[string]string{"reference": reference},
	})
	if err != nil {
		return nil, err
	}

	verified, err := decodeVerification(env.Payload(), reference)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeHTTP, "malformed verification response")
	}
	return verified, nil
}

// Receipt fetches the finalized receipt record for a reference.
func (s *Service) Receipt(ctx context.Context, reference string) (json.RawMessage, error) {
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeNoReference, "no payment reference supplied")
	}
	env, err := s.client.Get(ctx, fmt.Sprintf("/receipts/%s", reference), upstream.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return env.Payload(), nil
}

// VerifyReceipt runs the alternate receipt verification path and normalizes
// the result. The admin console uses it to validate a receipt a parent
// presents at the screening venue.
func (s *Service) VerifyReceipt(ctx context.Context, reference string) (*VerifiedPayment, error) {
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeNoReference, "no payment reference supplied")
	}
	env, err := s.client.Get(ctx, fmt.Sprintf("/receipts/verify/%s", reference), upstream.RequestOptions{})
	if err != nil {
		return nil, err
	}

	verified, err := decodeVerification(env.Payload(), reference)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeHTTP, "malformed receipt verification response")
	}
	return verified, nil
}
