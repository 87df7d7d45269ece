package frontend

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewProxy forwards page requests to the web client at target. The route
// guard runs before it, so only permitted pages reach the client.
func NewProxy(target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse FRONTEND_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("FRONTEND_URL must be absolute, got %q", target)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("[frontend] %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "web client unavailable", http.StatusBadGateway)
		},
	}, nil
}
