package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const statusOK = "ok"

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness. The server flips it off when draining.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// ErrDisabled marks a dependency that is not configured. It does not fail readiness.
var ErrDisabled = errors.New("disabled")

// Deps probes the catalog database and the optional Redis cache.
type Deps struct {
	// DB pings the catalog backend; nil for the in-memory catalog.
	DB    func(ctx context.Context) error
	Redis redis.UniversalClient
}

func (d Deps) PingDB(ctx context.Context, timeout time.Duration) error {
	if d.DB == nil {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.DB(ctx)
}

func (d Deps) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(statusOK))
}

// Ready probes dependencies concurrently and reports 503 if any configured one fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	var (
		mu     sync.Mutex
		status = map[string]string{}
	)
	set := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		status[name] = describe(err)
	}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		set("db", h.Checker.PingDB(ctx, h.dbTimeout()))
		return nil
	})
	g.Go(func() error {
		set("redis", h.Checker.PingRedis(ctx, h.redisTimeout()))
		return nil
	})
	_ = g.Wait()

	healthy := ready.Load()
	if !healthy {
		status["server"] = "draining"
	}
	for _, v := range []string{status["db"], status["redis"]} {
		if v != statusOK && v != ErrDisabled.Error() {
			healthy = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func describe(err error) string {
	if err == nil {
		return statusOK
	}
	return err.Error()
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
