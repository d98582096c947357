package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	DefaultInterval = 30 * time.Second
	probeTimeout    = 2 * time.Second
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// ComponentHealth is the last observed state of one dependency.
type ComponentHealth struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latencyMs"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Report is what GET /health returns.
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components []ComponentHealth `json:"components"`
}

// Monitor runs its probes on a ticker and keeps the latest report so the
// health endpoint never blocks on a slow dependency.
type Monitor struct {
	probes   map[string]Probe
	interval time.Duration

	mu     sync.RWMutex
	latest map[string]ComponentHealth
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		probes:   map[string]Probe{},
		interval: interval,
		latest:   map[string]ComponentHealth{},
	}
}

// Register adds a named probe. Must be called before Start.
func (m *Monitor) Register(name string, p Probe) *Monitor {
	m.probes[name] = p
	return m
}

// Start runs all probes once and then on every tick.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.RunOnce(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		log.Infof("[Health] Monitor started (interval: %s)", m.interval)
		for {
			select {
			case <-stopCh:
				log.Info("[Health] Monitor stopped")
				return
			case <-ticker.C:
				m.RunOnce(context.Background())
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopCh == nil {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	m.stopCh = nil
	m.mu.Unlock()
	m.wg.Wait()
}

// RunOnce executes every probe and stores the results.
func (m *Monitor) RunOnce(ctx context.Context) {
	for name, probe := range m.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		started := time.Now()
		err := probe(pctx)
		cancel()

		ch := ComponentHealth{
			Name:      name,
			Healthy:   err == nil,
			LatencyMS: time.Since(started).Milliseconds(),
			CheckedAt: time.Now(),
		}
		if err != nil {
			ch.Error = err.Error()
			log.Warnf("[Health] %s unhealthy: %v", name, err)
		}

		m.mu.Lock()
		m.latest[name] = ch
		m.mu.Unlock()
	}
}

// Report returns the latest state. Probes that never ran count as unhealthy.
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := Report{Healthy: true}
	for name := range m.probes {
		ch, ok := m.latest[name]
		if !ok {
			ch = ComponentHealth{Name: name, Error: "not checked yet"}
		}
		if !ch.Healthy {
			report.Healthy = false
		}
		report.Components = append(report.Components, ch)
	}
	sort.Slice(report.Components, func(i, j int) bool {
		return report.Components[i].Name < report.Components[j].Name
	})
	return report
}

// DatabaseProbe pings the connection pool behind db.
func DatabaseProbe(db *gorm.DB) Probe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisProbe pings the cache.
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
