package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"regpay/internal/admin"
	"regpay/internal/event"
	"regpay/pkg/platform/httputil"
)

// LoginResponse reports the established session without echoing the token.
type LoginResponse struct {
	Email     string `json:"email"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := httputil.DecodeJSON[admin.Credentials](w, r, h.logger)
	if !ok {
		return
	}

	sess, err := h.admins.Login(r.Context(), *creds)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Email:     sess.Email,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleAdminRegister(w http.ResponseWriter, r *http.Request) {
	creds, ok := httputil.DecodeJSON[admin.Credentials](w, r, h.logger)
	if !ok {
		return
	}

	sess, err := h.admins.Register(r.Context(), *creds)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, LoginResponse{
		Email:     sess.Email,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.admins.Logout(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "logged out")
}

func (h *Handler) handleAdminChangePassword(w http.ResponseWriter, r *http.Request) {
	change, ok := httputil.DecodeJSON[admin.PasswordChange](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.admins.ChangePassword(r.Context(), *change); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "password updated, log in again")
}

func (h *Handler) handleAdminCreateEvent(w http.ResponseWriter, r *http.Request) {
	draft, ok := httputil.DecodeJSON[event.Info](w, r, h.logger)
	if !ok {
		return
	}

	created, err := h.admins.CreateEvent(r.Context(), *draft)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleAdminUpdateEventFee(w http.ResponseWriter, r *http.Request) {
	change, ok := httputil.DecodeJSON[admin.FeeChange](w, r, h.logger)
	if !ok {
		return
	}

	updated, err := h.admins.UpdateEventFee(r.Context(), *change)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAdminRegistrations(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	listing, err := h.admins.Registrations(r.Context(), page, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleAdminRegistrationByID(w http.ResponseWriter, r *http.Request) {
	record, err := h.admins.RegistrationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	listing, err := h.admins.Payments(r.Context(), page, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listing)
}

func pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}

func (h *Handler) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.admins.ExportCSV(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="registrations.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Body)
}

func (h *Handler) handleAdminValidateReceipt(w http.ResponseWriter, r *http.Request) {
	verified, err := h.admins.ValidateReceipt(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verified)
}
