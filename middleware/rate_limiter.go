package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

// RateLimiter is a per-caller sliding window. Authenticated callers are keyed
// by user id, anonymous ones by client IP.
type RateLimiter struct {
	limit       int
	window      time.Duration
	trustedCIDR []string
	now         func() time.Time

	mu    sync.Mutex
	state map[string][]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration, trustedProxies []string) *RateLimiter {
	l := &RateLimiter{
		limit:       limit,
		window:      window,
		trustedCIDR: trustedProxies,
		now:         time.Now,
		state:       make(map[string][]time.Time),
		stop:        make(chan struct{}),
	}
	go l.cleanupLoop(time.Minute)
	return l
}

// Close stops the background cleanup.
func (l *RateLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *RateLimiter) key(r *http.Request) string {
	if uid, ok := utils.GetUserID(r); ok {
		return fmt.Sprintf("u:%d", uid)
	}
	return "ip:" + clientIPGeneric(r, l.trustedCIDR)
}

// allow records a hit for key and reports whether it is within the limit,
// plus how long until the oldest hit leaves the window.
func (l *RateLimiter) allow(key string) (bool, int, time.Duration) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	hits := l.state[key][:0]
	for _, ts := range l.state[key] {
		if ts.After(cutoff) {
			hits = append(hits, ts)
		}
	}
	hits = append(hits, now)
	l.state[key] = hits

	remaining := l.limit - len(hits)
	if remaining >= 0 {
		return true, remaining, 0
	}
	retry := hits[0].Add(l.window).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return false, 0, retry
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, retry := l.allow(l.key(r))
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		if !ok {
			secs := int(retry.Seconds())
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
			utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
				Success: false,
				Message: "Too many requests, try again later",
				Data:    map[string]int{"retry_after_seconds": secs},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) cleanupLoop(every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-tick.C:
		}
		cutoff := l.now().Add(-l.window)
		l.mu.Lock()
		for k, hits := range l.state {
			if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
				delete(l.state, k)
			}
		}
		l.mu.Unlock()
	}
}

// clientIPGeneric returns the client IP string. If trustedCIDR is provided,
// X-Forwarded-For / X-Real-IP headers are honored when remote addr is inside
// one of the trusted CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
				if remoteIP != nil && ipnet.Contains(remoteIP) {
					trusted = true
					break
				}
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
