package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	taskscope "github.com/aristath/taskscope"
)

// BreakerConfig configures the circuit breakers a Registry creates.
type BreakerConfig struct {
	MaxRequests         uint32        // Test requests allowed in half-open state (default 3)
	Timeout             time.Duration // How long the circuit stays open before testing recovery (default 30s)
	ConsecutiveFailures uint32        // Consecutive failures that trip the circuit (default 5)
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         3,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = d.ConsecutiveFailures
	}
	return c
}

// Registry manages named circuit breakers, one per protected dependency.
type Registry struct {
	cfg BreakerConfig
	log *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry creates a circuit breaker registry. Zero config fields take
// defaults; a nil logger discards the state-change lines.
func NewRegistry(cfg BreakerConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		cfg:      cfg.withDefaults(),
		log:      logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given name.
// Creates a new one if it doesn't exist.
func (r *Registry) Get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: r.cfg.MaxRequests,
		Interval:    0, // don't clear counts automatically
		Timeout:     r.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.log.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// A cancelled task says nothing about the dependency's health
			if err == nil {
				return true
			}
			if taskscope.IsCancelled(err) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[name] = cb
	return cb
}

// Guard wraps work behind the named breaker: while the circuit is open the
// work fails fast with gobreaker.ErrOpenState instead of running.
func (r *Registry) Guard(name string, work taskscope.Work) taskscope.Work {
	cb := r.Get(name)
	return func(ctx context.Context) error {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, work(ctx)
		})
		return err
	}
}
