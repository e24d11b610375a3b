package healthserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/user/screenstream/pkg/pipeline"
	"github.com/user/screenstream/pkg/ports"
)

// ErrNoTargets is returned when Probe is given no base URLs.
var ErrNoTargets = errors.New("healthserver: no probe targets")

// ProbeResult is the health report of the first reachable instance.
type ProbeResult struct {
	URL    string         `json:"url"`
	Health HealthResponse `json:"health"`
}

// HealthResponse mirrors the body served on /api/health.
type HealthResponse struct {
	Healthy       bool                  `json:"healthy"`
	UptimeSeconds int                   `json:"uptime_seconds"`
	Stream        pipeline.StreamStatus `json:"stream"`
}

// Prober checks /api/health on a primary instance and falls back to the next base URL
// when it cannot be reached.
type Prober struct {
	client *http.Client
	logger ports.Logger
}

// NewProber creates a Prober. With insecure, https targets with self-signed
// certificates are accepted.
func NewProber(timeout time.Duration, insecure bool, logger ports.Logger) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &Prober{
		client: &http.Client{Timeout: timeout, Transport: transport},
		logger: logger.WithComponent("probe"),
	}
}

// Probe tries each base URL in order and returns the first healthy answer. When all
// fail, the error of the primary is returned.
func (p *Prober) Probe(ctx context.Context, baseURLs ...string) (ProbeResult, error) {
	if len(baseURLs) == 0 {
		return ProbeResult{}, ErrNoTargets
	}

	var first error
	for i, base := range baseURLs {
		health, err := p.fetch(ctx, base)
		if err == nil {
			p.logger.Debug("Connected to %s", base)
			return ProbeResult{URL: base, Health: health}, nil
		}
		if i == 0 {
			first = err
		}
		if i < len(baseURLs)-1 {
			p.logger.Warn("Probe of %s failed: %s, trying fallback", base, err)
		}
	}
	return ProbeResult{}, first
}

func (p *Prober) fetch(ctx context.Context, base string) (HealthResponse, error) {
	url := strings.TrimRight(base, "/") + "/api/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("probe %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return HealthResponse{}, fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return HealthResponse{}, fmt.Errorf("probe %s: decode: %w", url, err)
	}
	return health, nil
}
