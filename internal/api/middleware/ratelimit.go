package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	clientIdleTimeout = 30 * time.Minute
	cleanupInterval   = 10 * time.Minute
)

// clientLimiter stores the token bucket for a specific client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware keeps one token bucket per client IP.
type RateLimiterMiddleware struct {
	name    string
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiterMiddleware creates a limiter refilling refillRate tokens per second up
// to burst. Idle clients are forgotten by a background sweep until stop is closed.
func NewRateLimiterMiddleware(name string, refillRate float64, burst int, stop <-chan struct{}) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		name:    name,
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(refillRate),
		burst:   burst,
		now:     time.Now,
	}
	if stop != nil {
		go rm.cleanupLoop(stop)
	}
	return rm
}

// getClientLimiter retrieves or creates the limiter for a given client identifier.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *rate.Limiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	client, exists := rm.clients[identifier]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rm.rate, rm.burst)}
		rm.clients[identifier] = client
	}
	client.lastSeen = rm.now()
	return client.limiter
}

func (rm *RateLimiterMiddleware) cleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := rm.cleanup(); n > 0 {
				log.Printf("Rate limiter %s cleanup removed %d old client entries.", rm.name, n)
			}
		}
	}
}

// cleanup removes clients not seen for clientIdleTimeout and reports how many were removed.
func (rm *RateLimiterMiddleware) cleanup() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if rm.now().Sub(client.lastSeen) > clientIdleTimeout {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		if !rm.getClientLimiter(clientKey).Allow() {
			log.Printf("Rate limit %s exceeded for client: %s on %s", rm.name, clientKey, c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
