package middleware

import (
	"net/http"
	"sync"
	"time"

	"lenspool/pkg/logger"
)

type AgentExtractor func(r *http.Request) string

// DefaultAgentExtractor reads the caller identity header set by the
// gateway. Requests without it are not rate limited here; handlers
// reject them on their own terms.
func DefaultAgentExtractor(r *http.Request) string {
	return r.Header.Get(AgentIDHeader)
}

// AgentRateLimiter applies a sliding-window request cap per agent.
type AgentRateLimiter struct {
	mu             sync.RWMutex
	requests       map[string][]time.Time
	limit          int
	window         time.Duration
	agentExtractor AgentExtractor
	log            *logger.Logger
	stopCh         chan struct{}
}

func NewAgentRateLimiter(limit int, window time.Duration, extractor AgentExtractor, log *logger.Logger) *AgentRateLimiter {
	limiter := &AgentRateLimiter{
		requests:       make(map[string][]time.Time),
		limit:          limit,
		window:         window,
		agentExtractor: extractor,
		log:            log,
		stopCh:         make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *AgentRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for agent, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, agent)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *AgentRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *AgentRateLimiter) Allow(agentID string) bool {
	if agentID == "" {
		return true
	}

	now := time.Now()

	rl.mu.RLock()
	timestamps := rl.requests[agentID]
	rl.mu.RUnlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		rl.log.Warn("Rate limit exceeded",
			"agent_id", agentID,
			"requests", len(validTimestamps),
			"limit", rl.limit,
			"window", rl.window,
		)
		return false
	}

	validTimestamps = append(validTimestamps, now)

	rl.mu.Lock()
	rl.requests[agentID] = validTimestamps
	rl.mu.Unlock()

	return true
}

func AgentRateLimit(limiter *AgentRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agentID := limiter.agentExtractor(r)

			if !limiter.Allow(agentID) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests, please slow down"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
