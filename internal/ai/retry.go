package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RetryConfig holds retry configuration for generator calls
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-attempt timeout (default: 90s)

	// Circuit breaker settings
	CircuitBreakerEnabled bool          // Enable circuit breaker (default: true)
	FailureThreshold      int           // Failures before opening circuit (default: 5)
	SuccessThreshold      int           // Successes in half-open before closing (default: 2)
	OpenTimeout           time.Duration // How long to keep circuit open (default: 30s)

	MaxConcurrentCalls int     // Maximum concurrent calls (default: 3, 0 = unlimited)
	RequestsPerSecond  float64 // Request pacing (default: 2, 0 = unlimited)
	Burst              int     // Pacing burst (default: 2)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            3,
		InitialBackoff:        1 * time.Second,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               90 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
		MaxConcurrentCalls:    3,
		RequestsPerSecond:     2,
		Burst:                 2,
	}
}

// Validate checks the retry configuration for values that would make calls
// impossible.
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0 (got %d)", c.MaxRetries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %v)", c.Timeout)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1 (got %v)", c.BackoffMultiplier)
	}
	if c.CircuitBreakerEnabled && (c.FailureThreshold < 1 || c.SuccessThreshold < 1) {
		return fmt.Errorf("circuit breaker thresholds must be >= 1 (got failure=%d success=%d)",
			c.FailureThreshold, c.SuccessThreshold)
	}
	if c.MaxConcurrentCalls < 0 {
		return fmt.Errorf("max concurrent calls must be >= 0 (got %d)", c.MaxConcurrentCalls)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must be >= 0 (got %v)", c.RequestsPerSecond)
	}
	return nil
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation, requests pass through
	CircuitOpen                         // Too many failures, block requests (fail fast)
	CircuitHalfOpen                     // Testing recovery, allow limited requests
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements the circuit breaker pattern to prevent cascading failures
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	logger           *slog.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		logger:           logger,
	}
}

// Allow checks if a request should be allowed through the circuit breaker.
// Returns ErrCircuitOpen if the circuit is open and hasn't timed out yet.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return nil
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.openTimeout {
			cb.transition(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(CircuitClosed)
		}
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()
	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure in half-open immediately reopens the circuit
		cb.transition(CircuitOpen)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.successCount = 0
	if to == CircuitClosed {
		cb.failureCount = 0
	}
	cb.logger.Info("circuit breaker state transition",
		"from", from.String(),
		"to", to.String(),
		"failures", cb.failureCount,
		"open_timeout", cb.openTimeout)
}

// retrier runs generator calls with pacing, a concurrency cap, a circuit
// breaker and exponential backoff.
type retrier struct {
	cfg     RetryConfig
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func newRetrier(cfg RetryConfig, logger *slog.Logger) *retrier {
	if logger == nil {
		logger = slog.Default()
	}
	r := &retrier{cfg: cfg, logger: logger, sleep: sleepCtx}
	if cfg.CircuitBreakerEnabled {
		r.breaker = NewCircuitBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.OpenTimeout, logger)
	}
	if cfg.MaxConcurrentCalls > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do executes fn with retry and exponential backoff.
func (r *retrier) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer r.sem.Release(1)
	}

	var lastErr error
	backoff := r.cfg.InitialBackoff

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.breaker != nil {
			if err := r.breaker.Allow(); err != nil {
				r.logger.Warn("generator call blocked by circuit breaker", "operation", operation)
				return fmt.Errorf("%s failed: %w", operation, err)
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s failed: rate limiter: %w", operation, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			if attempt > 0 {
				r.logger.Info("generator call succeeded after retries", "operation", operation, "retries", attempt)
			}
			return nil
		}
		lastErr = err

		// Non-retriable errors (like auth failures) don't count against the breaker
		retriable := isRetriableError(err)
		if r.breaker != nil && retriable {
			r.breaker.RecordFailure()
		}
		if !retriable {
			r.logger.Warn("generator call failed with non-retriable error", "operation", operation, "error", err)
			return err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: context canceled: %w", operation, ctx.Err())
		}

		r.logger.Info("generator call failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", r.cfg.MaxRetries+1,
			"backoff", backoff,
			"error", err)

		if err := r.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, err)
		}
		backoff = time.Duration(float64(backoff) * r.cfg.BackoffMultiplier)
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.cfg.MaxRetries+1, lastErr)
}

// isRetriableError determines if an error is transient.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= 500:
			return true
		case apiErr.StatusCode >= 400:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit",
		"500", "502", "503", "504", "529",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout", "overloaded",
		"connection refused", "connection reset", "timeout", "temporary failure", "network",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
