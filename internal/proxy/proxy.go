// internal/proxy/proxy.go
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Sentinel classifications for upstream responses. Not-found and
// HTML-error-page outcomes fail fast; everything else retries.
var (
	ErrTokenNotFound       = errors.New("token not found")
	ErrEndpointUnavailable = errors.New("endpoint unavailable")
)

const (
	maxFetchTries = 3
	fetchBaseWait = time.Second
)

// Server fronts the pump.fun coins endpoint for the dashboard: it
// retries transient upstream failures, fails fast on 404, rejects HTML
// error pages disguised as successes, and tries the identifier with and
// without the fixed "pump" suffix.
type Server struct {
	upstreamURL string
	httpClient  *http.Client
	retryBase   time.Duration
	logger      *zap.Logger
}

func NewServer(upstreamURL string, logger *zap.Logger) *Server {
	return &Server{
		upstreamURL: upstreamURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		retryBase:   fetchBaseWait,
		logger:      logger.Named("pump_proxy"),
	}
}

// Handler returns the proxy's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/pump-proxy", s.handleCoinLookup)
	return mux
}

func (s *Server) handleCoinLookup(w http.ResponseWriter, r *http.Request) {
	mintAddress := r.URL.Query().Get("mintAddress")
	if mintAddress == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing or invalid mintAddress")
		return
	}

	data, err := s.lookupWithFallback(r.Context(), mintAddress)
	if err != nil {
		s.logger.Warn("coin lookup failed",
			zap.String("mint", mintAddress), zap.Error(err))
		switch {
		case errors.Is(err, ErrTokenNotFound):
			writeJSONError(w, http.StatusNotFound, "Token not found")
		case errors.Is(err, ErrEndpointUnavailable):
			writeJSONError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		default:
			writeJSONError(w, http.StatusInternalServerError, "Failed to fetch token data")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// lookupWithFallback tries the identifier as given, then the alternate
// suffix spelling when the first form is unknown upstream.
func (s *Server) lookupWithFallback(ctx context.Context, mintAddress string) ([]byte, error) {
	data, err := s.fetchWithRetry(ctx, mintAddress)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrTokenNotFound) {
		return nil, err
	}

	alternate := alternateAddress(mintAddress)
	if alternate == mintAddress {
		return nil, err
	}
	s.logger.Debug("retrying with alternate address",
		zap.String("mint", mintAddress), zap.String("alternate", alternate))
	return s.fetchWithRetry(ctx, alternate)
}

// fetchWithRetry performs the upstream request with exponential backoff
// on transient failures.
func (s *Server) fetchWithRetry(ctx context.Context, mintAddress string) ([]byte, error) {
	op := func() ([]byte, error) {
		data, err := s.fetchOnce(ctx, mintAddress)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrEndpointUnavailable) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return data, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryBase

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxFetchTries),
	)
}

func (s *Server) fetchOnce(ctx context.Context, mintAddress string) ([]byte, error) {
	url := fmt.Sprintf("%s/coins/%s", s.upstreamURL, mintAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	// The upstream rejects requests without browser-like headers.
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36")
	req.Header.Set("Origin", "https://pump.fun")
	req.Header.Set("Referer", "https://pump.fun/")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, ErrEndpointUnavailable
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTokenNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream responded with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream body: %w", err)
	}
	if !json.Valid(data) || string(data) == "{}" || string(data) == "null" {
		return nil, fmt.Errorf("empty or invalid upstream response")
	}
	return data, nil
}

func alternateAddress(mintAddress string) string {
	if strings.HasSuffix(mintAddress, "pump") {
		return strings.TrimSuffix(mintAddress, "pump")
	}
	return mintAddress + "pump"
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
