package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Store maintains in-memory gauges and counters for agent telemetry.
type Store struct {
	ticks               atomic.Uint64
	tickErrors          atomic.Uint64
	lastTickUnix        atomic.Int64
	targetsChecked      atomic.Uint64
	targetsSkipped      atomic.Uint64
	matchesPassed       atomic.Uint64
	matchesFailed       atomic.Uint64
	shipmentsOK         atomic.Uint64
	shipmentsFailed     atomic.Uint64
	readinessState      atomic.Int64
	readinessReason     atomic.Value
	readinessCategories atomic.Value
	readyTransitions    atomic.Uint64
	notReadyTransitions atomic.Uint64
	categoryTotals      sync.Map // categoryKey -> *atomic.Uint64
}

// ReadinessCategory captures a categorized readiness reason with severity.
type ReadinessCategory struct {
	Name     string
	Severity string
}

type categoryKey struct {
	Name     string
	Severity string
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	store := &Store{}
	store.readinessReason.Store("")
	store.readinessCategories.Store([]ReadinessCategory(nil))
	return store
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	Ticks               uint64
	TickErrors          uint64
	LastTickUnix        int64
	TargetsChecked      uint64
	TargetsSkipped      uint64
	MatchesPassed       uint64
	MatchesFailed       uint64
	ShipmentsOK         uint64
	ShipmentsFailed     uint64
	Ready               bool
	ReadyReason         string
	ReadyTransitions    uint64
	NotReadyTransitions uint64
	ReadyCategories     []ReadinessCategory
	CategoryTransitions []CategoryCount
}

// CategoryCount captures accumulated transition counts per category/severity.
type CategoryCount struct {
	Category string
	Severity string
	Count    uint64
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	readyReason, _ := s.readinessReason.Load().(string)
	rawCategories, _ := s.readinessCategories.Load().([]ReadinessCategory)
	categories := make([]ReadinessCategory, len(rawCategories))
	copy(categories, rawCategories)
	categoryCounts := make([]CategoryCount, 0)
	s.categoryTotals.Range(func(key, value any) bool {
		ckey, ok := key.(categoryKey)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Uint64)
		if !ok || counter == nil {
			return true
		}
		categoryCounts = append(categoryCounts, CategoryCount{
			Category: ckey.Name,
			Severity: ckey.Severity,
			Count:    counter.Load(),
		})
		return true
	})
	return Snapshot{
		Ticks:               s.ticks.Load(),
		TickErrors:          s.tickErrors.Load(),
		LastTickUnix:        s.lastTickUnix.Load(),
		TargetsChecked:      s.targetsChecked.Load(),
		TargetsSkipped:      s.targetsSkipped.Load(),
		MatchesPassed:       s.matchesPassed.Load(),
		MatchesFailed:       s.matchesFailed.Load(),
		ShipmentsOK:         s.shipmentsOK.Load(),
		ShipmentsFailed:     s.shipmentsFailed.Load(),
		Ready:               s.readinessState.Load() == 1,
		ReadyReason:         readyReason,
		ReadyTransitions:    s.readyTransitions.Load(),
		NotReadyTransitions: s.notReadyTransitions.Load(),
		ReadyCategories:     categories,
		CategoryTransitions: categoryCounts,
	}
}

func (s *Store) ObserveReadiness(ready bool, reason string, categories []ReadinessCategory) {
	prev := s.readinessState.Load()
	if ready {
		if prev == 0 {
			s.readyTransitions.Add(1)
		}
		s.readinessState.Store(1)
		s.readinessReason.Store("")
		s.readinessCategories.Store([]ReadinessCategory(nil))
		return
	}
	if prev == 1 {
		s.notReadyTransitions.Add(1)
	}
	s.readinessState.Store(0)
	s.readinessReason.Store(reason)
	deduped := dedupeCategories(categories)
	s.readinessCategories.Store(deduped)
	if prev == 1 && len(deduped) > 0 {
		for _, cat := range deduped {
			counter := s.getCategoryCounter(cat)
			counter.Add(1)
		}
	}
}

func (s *Store) getCategoryCounter(category ReadinessCategory) *atomic.Uint64 {
	key := categoryKey{
		Name:     normalizeCategoryName(category.Name),
		Severity: normalizeSeverity(category.Severity),
	}
	if value, ok := s.categoryTotals.Load(key); ok {
		if counter, ok := value.(*atomic.Uint64); ok && counter != nil {
			return counter
		}
	}
	counter := &atomic.Uint64{}
	actual, _ := s.categoryTotals.LoadOrStore(key, counter)
	if existing, ok := actual.(*atomic.Uint64); ok && existing != nil {
		return existing
	}
	return counter
}

func dedupeCategories(categories []ReadinessCategory) []ReadinessCategory {
	if len(categories) == 0 {
		return nil
	}
	seen := make(map[categoryKey]struct{}, len(categories))
	result := make([]ReadinessCategory, 0, len(categories))
	for _, c := range categories {
		rawName := strings.TrimSpace(c.Name)
		if rawName == "" {
			continue
		}
		name := normalizeCategoryName(c.Name)
		severity := normalizeSeverity(c.Severity)
		key := categoryKey{Name: name, Severity: severity}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, ReadinessCategory{
			Name:     name,
			Severity: severity,
		})
	}
	return result
}

func normalizeCategoryName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return name
}

func normalizeSeverity(severity string) string {
	severity = strings.TrimSpace(strings.ToLower(severity))
	if severity == "" {
		return "unknown"
	}
	switch severity {
	case "info", "informational":
		return "info"
	case "warn", "warning":
		return "warning"
	case "critical", "crit":
		return "critical"
	default:
		return severity
	}
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	readyValue := 0
	if snap.Ready {
		readyValue = 1
	}
	reason := snap.ReadyReason
	if !snap.Ready && reason == "" {
		reason = "unknown"
	}
	if snap.Ready && reason == "" {
		reason = "ready"
	}
	lines := []string{
		"# HELP mix_agent_ticks_total Scheduled collections run, by outcome.",
		"# TYPE mix_agent_ticks_total counter",
		fmt.Sprintf("mix_agent_ticks_total{outcome=%q} %d", "ok", snap.Ticks-snap.TickErrors),
		fmt.Sprintf("mix_agent_ticks_total{outcome=%q} %d", "error", snap.TickErrors),
		"# HELP mix_agent_last_tick_timestamp_seconds Unix time of the most recent collection.",
		"# TYPE mix_agent_last_tick_timestamp_seconds gauge",
		fmt.Sprintf("mix_agent_last_tick_timestamp_seconds %d", snap.LastTickUnix),
		"# HELP mix_agent_targets_total Targets seen by the rule engine, by outcome.",
		"# TYPE mix_agent_targets_total counter",
		fmt.Sprintf("mix_agent_targets_total{outcome=%q} %d", "checked", snap.TargetsChecked),
		fmt.Sprintf("mix_agent_targets_total{outcome=%q} %d", "skipped", snap.TargetsSkipped),
		"# HELP mix_agent_matches_total Keyword rules evaluated, by result.",
		"# TYPE mix_agent_matches_total counter",
		fmt.Sprintf("mix_agent_matches_total{result=%q} %d", "matched", snap.MatchesPassed),
		fmt.Sprintf("mix_agent_matches_total{result=%q} %d", "mismatched", snap.MatchesFailed),
		"# HELP mix_agent_shipments_total Envelopes posted to the collector, by outcome.",
		"# TYPE mix_agent_shipments_total counter",
		fmt.Sprintf("mix_agent_shipments_total{outcome=%q} %d", "ok", snap.ShipmentsOK),
		fmt.Sprintf("mix_agent_shipments_total{outcome=%q} %d", "failed", snap.ShipmentsFailed),
		"# HELP mix_agent_ready Whether the agent considers itself ready (1=ready).",
		"# TYPE mix_agent_ready gauge",
		fmt.Sprintf("mix_agent_ready %d", readyValue),
		"# HELP mix_agent_ready_info Reason associated with the most recent readiness evaluation.",
		"# TYPE mix_agent_ready_info gauge",
		fmt.Sprintf("mix_agent_ready_info{reason=%q} 1", reason),
		"# HELP mix_agent_ready_transitions_total Count of readiness state transitions by resulting state.",
		"# TYPE mix_agent_ready_transitions_total counter",
		fmt.Sprintf("mix_agent_ready_transitions_total{state=%q} %d", "ready", snap.ReadyTransitions),
		fmt.Sprintf("mix_agent_ready_transitions_total{state=%q} %d", "not_ready", snap.NotReadyTransitions),
		"# HELP mix_agent_ready_categories_info Categories associated with the most recent readiness evaluation.",
		"# TYPE mix_agent_ready_categories_info gauge",
	}
	if len(snap.ReadyCategories) == 0 {
		lines = append(lines, fmt.Sprintf("mix_agent_ready_categories_info{category=%q,severity=%q} 1", "none", "none"))
	} else {
		cats := append([]ReadinessCategory(nil), snap.ReadyCategories...)
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].Name == cats[j].Name {
				return cats[i].Severity < cats[j].Severity
			}
			return cats[i].Name < cats[j].Name
		})
		for _, cat := range cats {
			lines = append(lines, fmt.Sprintf("mix_agent_ready_categories_info{category=%q,severity=%q} 1", cat.Name, cat.Severity))
		}
	}
	lines = append(lines,
		"# HELP mix_agent_ready_category_transitions_total Count of readiness degradations annotated by category.",
		"# TYPE mix_agent_ready_category_transitions_total counter",
	)
	if len(snap.CategoryTransitions) == 0 {
		lines = append(lines, fmt.Sprintf("mix_agent_ready_category_transitions_total{category=%q,severity=%q} %d", "none", "none", 0))
	} else {
		counts := append([]CategoryCount(nil), snap.CategoryTransitions...)
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].Category == counts[j].Category {
				return counts[i].Severity < counts[j].Severity
			}
			return counts[i].Category < counts[j].Category
		})
		for _, cc := range counts {
			lines = append(lines, fmt.Sprintf("mix_agent_ready_category_transitions_total{category=%q,severity=%q} %d", cc.Category, cc.Severity, cc.Count))
		}
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
