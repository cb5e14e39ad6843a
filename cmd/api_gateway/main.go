package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/joho/godotenv"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
	"github.com/ridloal/e-commerce-go-checkout/internal/platform/logger"
)

func newSingleHostReverseProxy(targetHost string) (*httputil.ReverseProxy, error) {
	targetURL, err := url.Parse(targetHost)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target URL '%s': %w", targetHost, err)
	}

	proxy := httputil.NewSingleHostReverseProxy(targetURL)

	proxy.ErrorHandler = func(rw http.ResponseWriter, req *http.Request, err error) {
		logger.Error(fmt.Sprintf("Gateway: proxy error for %s %s to %s", req.Method, req.URL.Path, targetURL), err, nil)
		http.Error(rw, "Service unavailable or proxy error", http.StatusBadGateway)
	}
	return proxy, nil
}

// serviceMappings: path tanpa trailing slash ikut didaftarkan supaya POST /api/v1/orders
// tidak di-redirect oleh ServeMux.
func serviceMappings(cfg config.GatewayConfig) map[string]string {
	return map[string]string{
		"/api/v1/users/":    cfg.UserServiceURL,
		"/api/v1/products":  cfg.ProductServiceURL,
		"/api/v1/products/": cfg.ProductServiceURL,
		"/api/v1/orders":    cfg.OrderServiceURL,
		"/api/v1/orders/":   cfg.OrderServiceURL, // termasuk notifikasi PayFast
	}
}

func newGatewayMux(cfg config.GatewayConfig) *http.ServeMux {
	mux := http.NewServeMux()
	for pathPrefix, targetHost := range serviceMappings(cfg) {
		proxy, err := newSingleHostReverseProxy(targetHost)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to create reverse proxy for target %s (prefix %s)", targetHost, pathPrefix), err, nil)
			continue
		}
		// Service mengharapkan path lengkap, jadi prefix tidak di-strip
		mux.Handle(pathPrefix, proxy)
		logger.Info(fmt.Sprintf("Routing %s to %s", pathPrefix, targetHost))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using process environment")
	}

	cfg := config.LoadGatewayConfig()
	logger.Info("Starting API Gateway on port " + cfg.ListenPort)

	server := &http.Server{
		Addr:    ":" + cfg.ListenPort,
		Handler: newGatewayMux(cfg),
	}

	logger.Info(fmt.Sprintf("API Gateway successfully configured and listening on :%s", cfg.ListenPort))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("API Gateway failed to start or crashed", err, nil)
	}
}
