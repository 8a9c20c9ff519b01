package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// MockPinger is a mock implementation of the Pinger interface for testing.
type MockPinger struct {
	ShouldFail bool
	Delay      time.Duration
}

func (m *MockPinger) Ping(ctx context.Context) error {
	select {
	case <-time.After(m.Delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if m.ShouldFail {
		return errors.New("mock ping failed")
	}
	return nil
}

type fixedScheduler time.Time

func (s fixedScheduler) Next() time.Time { return time.Time(s) }

func genVersion() gopter.Gen {
	return gen.RegexMatch("v?[0-9]+\\.[0-9]+\\.[0-9]+")
}

// The store component is always reported and drives the overall status.
func TestPropertyHealthCheckStoreVerification(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("store status and overall status follow the ping", prop.ForAll(
		func(version string, healthy bool) bool {
			checker := NewChecker(&MockPinger{ShouldFail: !healthy}, version)
			response := checker.Check(context.Background())

			storeStatus, ok := response.Components["store"]
			if !ok || response.Version != version {
				return false
			}
			want := StatusHealthy
			if !healthy {
				want = StatusUnhealthy
			}
			return storeStatus.Status == want && response.Status == want
		},
		genVersion(),
		gen.Bool(),
	))

	properties.Property("handler status code follows overall status", prop.ForAll(
		func(version string, healthy bool) bool {
			checker := NewChecker(&MockPinger{ShouldFail: !healthy}, version)
			rr := httptest.NewRecorder()
			checker.Handler()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			var body map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				return false
			}
			if _, ok := body["components"].(map[string]any)["store"]; !ok {
				return false
			}
			if healthy {
				return rr.Code == http.StatusOK
			}
			return rr.Code == http.StatusServiceUnavailable
		},
		genVersion(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestNilPingerIsUnhealthy(t *testing.T) {
	response := NewChecker(nil, "v1.0.0").Check(context.Background())
	if response.Components["store"].Status != StatusUnhealthy {
		t.Errorf("expected unhealthy store, got %+v", response.Components["store"])
	}
}

func TestSchedulerComponent(t *testing.T) {
	next := time.Date(2024, 3, 2, 20, 30, 0, 0, time.UTC)

	checker := NewChecker(&MockPinger{}, "v1.0.0")
	checker.SetScheduler(fixedScheduler(next))
	response := checker.Check(context.Background())
	if response.Status != StatusHealthy || response.NextRetention == nil || !response.NextRetention.Equal(next) {
		t.Errorf("unexpected response %+v", response)
	}

	checker.SetScheduler(fixedScheduler(time.Time{}))
	response = checker.Check(context.Background())
	if response.Status != StatusDegraded || response.NextRetention != nil {
		t.Errorf("expected degraded without a next run, got %+v", response)
	}
	rr := httptest.NewRecorder()
	checker.Handler()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("degraded should still return 200, got %d", rr.Code)
	}
}

func TestHealthCheckTimesOutSlowStore(t *testing.T) {
	checker := NewChecker(&MockPinger{Delay: 10 * time.Second}, "v1.0.0")
	checker.SetTimeout(100 * time.Millisecond)

	start := time.Now()
	response := checker.Check(context.Background())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("health check took %v", elapsed)
	}
	if response.Components["store"].Status != StatusUnhealthy {
		t.Errorf("expected timed out store to be unhealthy")
	}
}
