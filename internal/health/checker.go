package health

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mixhq/agent/internal/metrics"
)

const defaultStaleAfter = time.Minute

const (
	categoryTickPending = "TICK_PENDING"
	categoryTickStale   = "TICK_STALE"
	categoryTickError   = "TICK_ERROR"
	categoryShipFailing = "SHIP_FAILING"
)

const (
	severityInfo     = "info"
	severityWarning  = "warning"
	severityCritical = "critical"
)

// Checker evaluates readiness conditions for the agent.
type Checker struct {
	metrics    *metrics.Store
	staleAfter time.Duration

	mu            sync.RWMutex
	lastTick      time.Time
	tickErr       string
	lastTickError time.Time
	shipErr       string
	lastShipError time.Time
}

// NewChecker constructs a readiness checker bound to the provided metrics store.
// staleAfter bounds how long the agent may go without a completed collection.
func NewChecker(store *metrics.Store, staleAfter time.Duration) *Checker {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Checker{
		metrics:    store,
		staleAfter: staleAfter,
	}
}

// StaleAfterFor derives a staleness window from two consecutive fire times:
// two missed intervals plus slack.
func StaleAfterFor(next, following time.Time, slack time.Duration) time.Duration {
	interval := following.Sub(next)
	if interval <= 0 {
		return defaultStaleAfter
	}
	return 2*interval + slack
}

// ObserveTick records the outcome of one scheduled collection.
func (c *Checker) ObserveTick(ts time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.tickErr = err.Error()
		c.lastTickError = ts
		return
	}
	c.lastTick = ts
	c.tickErr = ""
	c.lastTickError = time.Time{}
}

// ObserveShipment records the outcome of one envelope delivery.
func (c *Checker) ObserveShipment(ts time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.shipErr = err.Error()
		c.lastShipError = ts
		return
	}
	c.shipErr = ""
	c.lastShipError = time.Time{}
}

// Ready evaluates all readiness conditions and returns the overall status and reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	reasons := make([]string, 0, 3)
	categories := make([]metrics.ReadinessCategory, 0, 3)
	appendCategory := func(name, severity string) {
		categories = append(categories, metrics.ReadinessCategory{
			Name:     name,
			Severity: severity,
		})
	}

	c.mu.RLock()
	lastTick := c.lastTick
	tickErr := c.tickErr
	lastTickErr := c.lastTickError
	shipErr := c.shipErr
	lastShipErr := c.lastShipError
	staleAfter := c.staleAfter
	c.mu.RUnlock()

	if lastTick.IsZero() {
		reasons = append(reasons, "no collection completed yet")
		appendCategory(categoryTickPending, severityInfo)
	} else if now.Sub(lastTick) > staleAfter {
		reasons = append(reasons, fmt.Sprintf("collection stale (%s)", now.Sub(lastTick).Round(time.Second)))
		appendCategory(categoryTickStale, severityWarning)
	}

	if tickErr != "" && now.Sub(lastTickErr) <= staleAfter {
		reasons = append(reasons, fmt.Sprintf("collection failing: %s", tickErr))
		appendCategory(categoryTickError, severityCritical)
	}

	if shipErr != "" && now.Sub(lastShipErr) <= staleAfter {
		reasons = append(reasons, fmt.Sprintf("shipping failing: %s", shipErr))
		appendCategory(categoryShipFailing, severityCritical)
	}

	ready := len(reasons) == 0
	if c.metrics != nil {
		if ready {
			c.metrics.ObserveReadiness(true, "", nil)
		} else {
			c.metrics.ObserveReadiness(false, strings.Join(reasons, "; "), categories)
		}
	}
	if !ready {
		return false, reasons
	}
	return true, nil
}
