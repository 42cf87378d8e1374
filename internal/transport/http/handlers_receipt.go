package httptransport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"regpay/internal/reconcile"
	"regpay/pkg/platform/httputil"
)

// ReceiptResponse wraps a reconciliation outcome for the client.
type ReceiptResponse struct {
	State    reconcile.State    `json:"state"`
	Attempts int                `json:"attempts"`
	Receipt  *reconcile.Receipt `json:"receipt"`
}

// handlePaymentReconcile resolves the reference the payment provider
// appended to its return URL. Providers are inconsistent about the
// parameter name.
func (h *Handler) handlePaymentReconcile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reference := q.Get("reference")
	if reference == "" {
		reference = q.Get("trxref")
	}
	h.resolveReceipt(w, r, reference)
}

// handleReceipt resolves a receipt for a known reference.
func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	h.resolveReceipt(w, r, chi.URLParam(r, "reference"))
}

// resolveReceipt runs the reconciliation engine, collapsing concurrent
// requests for the same reference into one run. Attempts for one reference
// stay strictly sequential even under concurrent polling.
func (h *Handler) resolveReceipt(w http.ResponseWriter, r *http.Request, reference string) {
	reference = strings.TrimSpace(reference)

	v, err, _ := h.resolves.Do(reference, func() (any, error) {
		return h.engine.Resolve(r.Context(), reference)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result := v.(*reconcile.Result)
	if resultErr := result.Err(); resultErr != nil {
		httputil.WriteError(w, resultErr)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ReceiptResponse{
		State:    result.State,
		Attempts: result.Attempts,
		Receipt:  result.Receipt,
	})
}
