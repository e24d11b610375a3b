package healthserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/screenstream/pkg/adapters/logger"
	"github.com/user/screenstream/pkg/metrics"
	"github.com/user/screenstream/pkg/pipeline"
)

type staticSource struct {
	status pipeline.StreamStatus
}

func (s staticSource) Status() pipeline.StreamStatus { return s.status }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		status   pipeline.StreamStatus
		wantCode int
	}{
		{"streaming", pipeline.StreamStatus{State: "in_progress", Alive: true, PID: 4242}, http.StatusOK},
		{"starting", pipeline.StreamStatus{State: "not_started", Alive: true}, http.StatusOK},
		{"reconnecting", pipeline.StreamStatus{State: "in_progress", Alive: false}, http.StatusServiceUnavailable},
		{"completed", pipeline.StreamStatus{State: "completed"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(staticSource{tt.status}, prometheus.NewRegistry(), logger.NewNoop())
			rec := get(t, s.Handler(), "/api/health")

			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body struct {
				Healthy bool                  `json:"healthy"`
				Stream  pipeline.StreamStatus `json:"stream"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Healthy != (tt.wantCode == http.StatusOK) {
				t.Errorf("unexpected healthy flag %v", body.Healthy)
			}
			if body.Stream.PID != tt.status.PID || body.Stream.Alive != tt.status.Alive {
				t.Errorf("unexpected stream status: %+v", body.Stream)
			}
		})
	}
}

func TestPing(t *testing.T) {
	s := New(staticSource{}, prometheus.NewRegistry(), logger.NewNoop())
	rec := get(t, s.Handler(), "/api/ping")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pong") {
		t.Errorf("unexpected ping response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "stream-1")
	m.FramesEmitted.Add(3)

	s := New(staticSource{}, reg, logger.NewNoop())
	rec := get(t, s.Handler(), "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `screenstream_frames_emitted_total{stream_id="stream-1"} 3`) {
		t.Errorf("expected emitted frames metric, got:\n%s", body)
	}
}
