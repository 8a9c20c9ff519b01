package shutdown

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// MockComponent is a mock implementation of the Component interface for testing.
type MockComponent struct {
	name          string
	shutdownDelay time.Duration
	shouldFail    bool
	shutdownCount int32
	order         *recorder
}

type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.names, ",")
}

func NewMockComponent(name string, delay time.Duration, shouldFail bool) *MockComponent {
	return &MockComponent{
		name:          name,
		shutdownDelay: delay,
		shouldFail:    shouldFail,
	}
}

func (m *MockComponent) Name() string {
	return m.name
}

func (m *MockComponent) Shutdown(ctx context.Context) error {
	atomic.AddInt32(&m.shutdownCount, 1)
	if m.order != nil {
		m.order.add(m.name)
	}

	select {
	case <-time.After(m.shutdownDelay):
		if m.shouldFail {
			return errors.New("mock shutdown failed")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockComponent) ShutdownCount() int {
	return int(atomic.LoadInt32(&m.shutdownCount))
}

func genDuration(minMs, maxMs int64) gopter.Gen {
	return gen.Int64Range(minMs, maxMs).Map(func(ms int64) time.Duration {
		return time.Duration(ms) * time.Millisecond
	})
}

// Every registered component is stopped exactly once, newest first, after a signal.
func TestPropertyGracefulShutdownBehavior(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("components stop once in reverse registration order", prop.ForAll(
		func(numComponents int) bool {
			sigCh := make(chan os.Signal, 1)
			coordinator := NewCoordinator(
				WithTimeout(time.Second),
				WithSignalChannel(sigCh),
			)

			order := &recorder{}
			components := make([]*MockComponent, numComponents)
			var want []string
			for i := 0; i < numComponents; i++ {
				comp := NewMockComponent("component-"+string(rune('A'+i)), time.Millisecond, i%2 == 1)
				comp.order = order
				components[i] = comp
				coordinator.Register(comp)
				want = append([]string{comp.name}, want...)
			}

			done := make(chan struct{})
			go func() {
				coordinator.WaitForSignal()
				coordinator.Wait()
				close(done)
			}()
			sigCh <- os.Interrupt

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				return false
			}
			for _, comp := range components {
				if comp.ShutdownCount() != 1 {
					return false
				}
			}
			// Failing components do not stop the sequence or force termination.
			return order.String() == strings.Join(want, ",") && coordinator.ExitCode() == 0
		},
		gen.IntRange(1, 5),
	))

	properties.Property("slow components force termination at the deadline", prop.ForAll(
		func(timeout time.Duration) bool {
			coordinator := NewCoordinator(WithTimeout(timeout))
			first := NewMockComponent("store", time.Millisecond, false)
			slow := NewMockComponent("slow", timeout*3, false)
			coordinator.Register(first)
			coordinator.Register(slow)

			start := time.Now()
			coordinator.Shutdown()
			coordinator.Wait()

			return time.Since(start) < timeout+200*time.Millisecond &&
				coordinator.ExitCode() == 1 &&
				first.ShutdownCount() == 0
		},
		genDuration(50, 150),
	))

	properties.TestingRun(t)
}

func TestShutdownIsIdempotent(t *testing.T) {
	coordinator := NewCoordinator(WithTimeout(time.Second))
	comp := NewMockComponent("test-component", 10*time.Millisecond, false)
	coordinator.Register(comp)

	coordinator.Shutdown()
	coordinator.Shutdown()
	coordinator.Wait()

	if comp.ShutdownCount() != 1 {
		t.Errorf("component shutdown count: %d, expected 1", comp.ShutdownCount())
	}
}

// In-flight HTTP requests complete before the server component returns.
func TestPropertyHTTPServerGracefulShutdown(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("in-flight HTTP requests complete during shutdown", prop.ForAll(
		func(requestTime time.Duration) bool {
			started := make(chan struct{})
			var once sync.Once
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				once.Do(func() { close(started) })
				time.Sleep(requestTime)
				w.WriteHeader(http.StatusOK)
			})
			server := httptest.NewServer(handler)
			defer server.Close()

			coordinator := NewCoordinator(WithTimeout(requestTime * 5))
			coordinator.Register(NewHTTPServerComponent("api", server.Config))

			status := make(chan int, 1)
			go func() {
				resp, err := http.Get(server.URL)
				if err != nil {
					status <- 0
					return
				}
				resp.Body.Close()
				status <- resp.StatusCode
			}()
			<-started

			coordinator.Shutdown()
			coordinator.Wait()

			select {
			case code := <-status:
				return code == http.StatusOK && coordinator.ExitCode() == 0
			case <-time.After(time.Second):
				return false
			}
		},
		genDuration(10, 100),
	))

	properties.TestingRun(t)
}

func TestFuncAndCloserComponents(t *testing.T) {
	var calls []string
	coordinator := NewCoordinator(WithTimeout(time.Second))
	coordinator.Register(NewCloserComponent("store", closerFunc(func() error {
		calls = append(calls, "store")
		return nil
	})))
	coordinator.Register(NewFuncComponent("scheduler", func(ctx context.Context) error {
		calls = append(calls, "scheduler")
		return nil
	}))

	coordinator.Shutdown()
	coordinator.Wait()

	if strings.Join(calls, ",") != "scheduler,store" {
		t.Errorf("calls = %v", calls)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
