package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

// Upstream is a backend service the gateway forwards to.
type Upstream struct {
	Name   string
	Target *url.URL
}

func ParseUpstream(name, rawURL string) (Upstream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Upstream{}, fmt.Errorf("upstream %s: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Upstream{}, fmt.Errorf("upstream %s: absolute url required, got %q", name, rawURL)
	}
	return Upstream{Name: name, Target: u}, nil
}

// NewProxy builds a reverse proxy for up. A nil transport means
// http.DefaultTransport.
func NewProxy(up Upstream, transport http.RoundTripper, log *zap.Logger) *httputil.ReverseProxy {
	if log == nil {
		log = zap.NewNop()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(up.Target)
			pr.SetXForwarded()
			if id := middleware.GetReqID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(RequestIDHeader, id)
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.FromContextOr(r.Context(), log).Warn("upstream request failed",
				zap.String("upstream", up.Name),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, context.DeadlineExceeded) {
				respond.Error(w, http.StatusGatewayTimeout, "upstream_timeout", up.Name+" did not respond in time")
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			respond.Error(w, http.StatusBadGateway, "upstream_unavailable", up.Name+" is unavailable")
		},
	}
}
