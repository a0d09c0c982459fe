// Package handler exposes the WhatsApp webhook over API Gateway (Lambda) and
// plain net/http (chi).
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"wa-bot/internal/domain"
	"wa-bot/internal/integrations/whatsapp"
)

const (
	CorrelationHeader = "X-Correlation-Id"

	codeInvalidInput     = "INVALID_INPUT"
	codeInvalidSignature = "INVALID_SIGNATURE"
	codeForbidden        = "FORBIDDEN"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// MessageHandler processes one incoming chat message.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.IncomingMessage) error
}

type Handler struct {
	bot         MessageHandler
	verifyToken string
	appSecret   string
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status   string `json:"status"`
	Messages int    `json:"messages"`
}

// response is the transport-neutral result of a webhook call.
type response struct {
	status      int
	contentType string
	body        string
}

// NewHandler builds the webhook handler. verifyToken answers the subscription
// handshake; appSecret, when set, is used to check request signatures.
func NewHandler(bot MessageHandler, verifyToken, appSecret string) (*Handler, error) {
	if bot == nil {
		return nil, errors.New("handler: bot must not be nil")
	}
	return &Handler{bot: bot, verifyToken: verifyToken, appSecret: appSecret}, nil
}

func (h *Handler) verify(mode, token, challenge string) response {
	out, err := whatsapp.VerifyChallenge(h.verifyToken, mode, token, challenge)
	if err != nil {
		slog.Warn("webhook verification rejected", "mode", mode)
		return jsonResponse(http.StatusForbidden, errorResponse{Error: codeForbidden})
	}
	slog.Info("webhook verified")
	return response{status: http.StatusOK, contentType: "text/plain", body: out}
}

// receive handles a notification delivery. Message failures are logged and
// still acknowledged so the platform does not redeliver them.
func (h *Handler) receive(ctx context.Context, body []byte, signature string) response {
	if err := whatsapp.VerifySignature(h.appSecret, body, signature); err != nil {
		slog.Warn("webhook signature rejected", "err", err)
		return jsonResponse(http.StatusUnauthorized, errorResponse{Error: codeInvalidSignature})
	}
	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		slog.Warn("webhook body rejected", "err", err)
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: codeInvalidInput})
	}
	for _, msg := range msgs {
		if err := h.bot.Handle(ctx, msg); err != nil {
			slog.Error("message failed", "err", err, "message_id", msg.ID, "from", msg.From)
		}
	}
	return jsonResponse(http.StatusOK, statusResponse{Status: "ok", Messages: len(msgs)})
}

func jsonResponse(status int, v any) response {
	b, err := json.Marshal(v)
	if err != nil {
		return response{status: http.StatusInternalServerError, contentType: "application/json", body: `{"error":"INTERNAL_ERROR"}`}
	}
	return response{status: status, contentType: "application/json", body: string(b)}
}
