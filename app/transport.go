package app

import (
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewTransport(lc fx.Lifecycle, log *zap.Logger) http.RoundTripper {
	return &transport{http.DefaultTransport, log}
}

// transport logs every outbound request made by adapters and senders.
type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := tpt.base.RoundTrip(req)

	log := tpt.log.Sugar().With(
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"elapsed_msecs", time.Since(start).Milliseconds(),
	)
	if err != nil {
		log.Warnw("Outbound request failed", "err", err)
		return nil, err
	}
	log.Debugw("Outbound request", "status", resp.StatusCode)
	return resp, nil
}
