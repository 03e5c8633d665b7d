// Package handlers exposes the booking engine as JSON over HTTP.
package handlers

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lojf/gymclass/internal/services"
)

type Handlers struct {
	Svc      *services.Service
	validate *validator.Validate
}

func New(svc *services.Service) *Handlers {
	v := validator.New()
	// Report json field names in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handlers{Svc: svc, validate: v}
}

// GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Svc.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
