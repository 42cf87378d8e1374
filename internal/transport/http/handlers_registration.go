package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"regpay/internal/event"
	"regpay/internal/payment"
	"regpay/internal/registration"
	"regpay/pkg/platform/httputil"
)

// RegistrationResponse carries everything the applicant needs to proceed to
// the hosted payment page.
type RegistrationResponse struct {
	RegistrationID   string `json:"registrationId,omitempty"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode,omitempty"`
}

// handleEvent returns the live event and fee information.
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	info, err := h.events.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// handleRegister submits the biodata, initializes the hosted payment and
// snapshots the registration. The snapshot write completes before the
// response is sent: it is the fallback source for the receipt, so it must be
// durable before the applicant leaves for the payment page.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[event.RegistrationRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.events.Register(ctx, *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RegistrationsSubmitted.Inc()
	}

	initialized, err := h.payments.Initialize(ctx, h.initializeRequest(ctx, result.Reference, req.Email))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.PaymentsInitialized.Inc()
	}

	// The snapshot is keyed by the reference the payment provider will round
	// back to us, which initialize may have canonicalized.
	snap := snapshotFrom(req, result, initialized.Reference)
	if err := h.snapshots.Put(ctx, snap); err != nil {
		// The registration and payment session already exist upstream, so a
		// snapshot failure degrades the receipt fallback but must not block
		// the applicant.
		h.logger.ErrorContext(ctx, "snapshot write failed",
			slog.String("reference", snap.Reference),
			slog.Any("error", err))
	}

	httputil.WriteJSON(w, http.StatusCreated, RegistrationResponse{
		RegistrationID:   result.RegistrationID,
		Reference:        initialized.Reference,
		AuthorizationURL: initialized.AuthorizationURL,
		AccessCode:       initialized.AccessCode,
	})
}

func (h *Handler) initializeRequest(ctx context.Context, reference, email string) payment.InitializeRequest {
	amount := int64(0)
	if info, err := h.events.Current(ctx); err == nil {
		amount = info.AmountMinor
	} else {
		h.logger.WarnContext(ctx, "event fee lookup failed, backend will price the session",
			slog.Any("error", err))
	}
	return payment.InitializeRequest{Reference: reference, Email: email, AmountMinor: amount}
}

func snapshotFrom(req *event.RegistrationRequest, result *event.RegistrationResult, reference string) *registration.Snapshot {
	if reference == "" {
		reference = result.Reference
	}
	return &registration.Snapshot{
		FirstName:           req.FirstName,
		Surname:             req.Surname,
		Sex:                 req.Sex,
		DateOfBirth:         req.DateOfBirth,
		Age:                 req.Age,
		StateOfResidence:    req.StateOfResidence,
		StateOfOrigin:       req.StateOfOrigin,
		PositionOfPlay:      req.PositionOfPlay,
		GuardianFullName:    req.GuardianFullName,
		GuardianPhoneNumber: req.GuardianPhoneNumber,
		Email:               req.Email,
		Reference:           reference,
		RegistrationID:      result.RegistrationID,
		CapturedAt:          time.Now().UTC(),
	}
}
