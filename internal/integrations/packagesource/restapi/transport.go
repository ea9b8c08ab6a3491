package restapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BearBump/DelayWatch/internal/logger"
)

type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		logger.Get().Warn("packages backend request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	logger.Get().Debug("packages backend request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}
