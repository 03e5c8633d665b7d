package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// GET /qr/{code}.png renders a reservation's check-in code. The image holds
// the bare code so a desk scanner can post it to /api/checkin/code.
func (h *Handlers) QR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.NotFound(w, r)
		return
	}
	res, err := h.Svc.GetReservationByCode(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	png, err := qrcode.Encode(res.Code, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "failed to generate qr", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
