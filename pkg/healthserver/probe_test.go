package healthserver

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/screenstream/pkg/adapters/logger"
	"github.com/user/screenstream/pkg/pipeline"
)

func serve(t *testing.T, st pipeline.StreamStatus) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(staticSource{st}, prometheus.NewRegistry(), logger.NewNoop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_Primary(t *testing.T) {
	primary := serve(t, pipeline.StreamStatus{StreamID: "a", State: "in_progress", Alive: true, PID: 7})
	fallback := serve(t, pipeline.StreamStatus{StreamID: "b", State: "in_progress", Alive: true})

	p := NewProber(time.Second, false, logger.NewNoop())
	res, err := p.Probe(context.Background(), primary.URL, fallback.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if res.URL != primary.URL || res.Health.Stream.StreamID != "a" || res.Health.Stream.PID != 7 || !res.Health.Healthy {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestProbe_Fallback(t *testing.T) {
	down := serve(t, pipeline.StreamStatus{State: "in_progress", Alive: false})
	fallback := serve(t, pipeline.StreamStatus{StreamID: "b", State: "in_progress", Alive: true})

	p := NewProber(time.Second, false, logger.NewNoop())
	res, err := p.Probe(context.Background(), down.URL+"/", fallback.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if res.URL != fallback.URL || res.Health.Stream.StreamID != "b" {
		t.Errorf("expected fallback result, got %+v", res)
	}
}

func TestProbe_AllFail(t *testing.T) {
	closed := httptest.NewServer(nil)
	closed.Close()
	down := serve(t, pipeline.StreamStatus{State: "in_progress", Alive: false})

	p := NewProber(time.Second, true, logger.NewNoop())
	_, err := p.Probe(context.Background(), closed.URL, down.URL)
	if err == nil {
		t.Fatal("expected error when every target fails")
	}
	if !strings.Contains(err.Error(), closed.URL) {
		t.Errorf("expected the primary error, got %v", err)
	}

	if _, err := p.Probe(context.Background()); !errors.Is(err, ErrNoTargets) {
		t.Errorf("expected ErrNoTargets, got %v", err)
	}
}
