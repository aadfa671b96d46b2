package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIdHeader = "X-Request-ID"

// Longer client-supplied ids are replaced rather than echoed.
const maxRequestIdLength = 128

type requestIdKey struct{}

// RequestIdMiddleware assigns every request an id, echoing a reasonable one sent by the
// client, and returns it in the X-Request-ID response header.
func RequestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(httpResponse http.ResponseWriter, httpRequest *http.Request) {
		requestId := httpRequest.Header.Get(requestIdHeader)
		if requestId == "" || len(requestId) > maxRequestIdLength {
			requestId = uuid.NewString()
		}

		httpResponse.Header().Set(requestIdHeader, requestId)
		ctx := context.WithValue(httpRequest.Context(), requestIdKey{}, requestId)
		next.ServeHTTP(httpResponse, httpRequest.WithContext(ctx))
	})
}

func RequestIdFromContext(ctx context.Context) string {
	requestId, _ := ctx.Value(requestIdKey{}).(string)
	return requestId
}

func requestLogger(ctx context.Context, logger *zap.SugaredLogger) *zap.SugaredLogger {
	if requestId := RequestIdFromContext(ctx); requestId != "" {
		return logger.With("request_id", requestId)
	}
	return logger
}
