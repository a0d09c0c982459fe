package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"wa-bot/internal/integrations/whatsapp"
)

// Handle serves the webhook behind an API Gateway proxy integration.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(event.Headers, CorrelationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	slog.Info("request received", "method", event.HTTPMethod, "path", event.Path, "correlation_id", correlationID)

	var res response
	switch event.HTTPMethod {
	case http.MethodGet:
		q := event.QueryStringParameters
		res = h.verify(q["hub.mode"], q["hub.verify_token"], q["hub.challenge"])
	case http.MethodPost:
		body := []byte(event.Body)
		if event.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(event.Body)
			if err != nil {
				res = jsonResponse(http.StatusBadRequest, errorResponse{Error: codeInvalidInput})
				break
			}
			body = decoded
		}
		res = h.receive(ctx, body, header(event.Headers, whatsapp.SignatureHeader))
	default:
		res = jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: codeMethodNotAllowed})
	}

	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers: map[string]string{
			"Content-Type":    res.contentType,
			CorrelationHeader: correlationID,
		},
		Body: res.body,
	}, nil
}

// header looks up name case-insensitively; API Gateway passes headers as sent.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
