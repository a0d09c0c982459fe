package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wa-bot/internal/integrations/whatsapp"
)

const maxBodyBytes = 1 << 20

// Routes mounts the webhook on a chi router together with a /healthz probe.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Get("/webhook", h.serveVerify)
	r.Post("/webhook", h.serveReceive)
	return r
}

func (h *Handler) serveVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	write(w, r, h.verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")))
}

func (h *Handler) serveReceive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		write(w, r, jsonResponse(http.StatusBadRequest, errorResponse{Error: codeInvalidInput}))
		return
	}
	// keep processing if the sender stops waiting
	ctx := context.WithoutCancel(r.Context())
	write(w, r, h.receive(ctx, body, r.Header.Get(whatsapp.SignatureHeader)))
}

func write(w http.ResponseWriter, r *http.Request, res response) {
	w.Header().Set("Content-Type", res.contentType)
	if id := middleware.GetReqID(r.Context()); id != "" {
		w.Header().Set(CorrelationHeader, id)
	}
	w.WriteHeader(res.status)
	_, _ = io.WriteString(w, res.body)
}
