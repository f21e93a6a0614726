package rule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
	"go.uber.org/zap"

	"github.com/mixhq/agent/internal/jsonpath"
	"github.com/mixhq/agent/pkg/types"
)

const displayLayout = "2006-01-02 15:04:05"

// Matcher evaluates parsed rules against extracted values.
type Matcher struct {
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger
}

type Option func(*Matcher)

func WithNow(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLocation sets the zone used to interpret timestamps without an offset.
func WithLocation(loc *time.Location) Option {
	return func(m *Matcher) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		now:    time.Now,
		loc:    time.Local,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate extracts exp.Path from doc and matches it. ok is false when the
// keyword produces no entry: the path is invalid, nothing was found, or the
// node is not a scalar.
func (m *Matcher) Evaluate(keyword string, exp Exp, doc jsonpath.Document) (types.MatchResult, bool) {
	value, found, err := jsonpath.Lookup(doc, exp.Path)
	switch {
	case errors.Is(err, jsonpath.ErrUnsupportedType):
		m.logger.Warn("unsupported match type", zap.String("keyword", keyword), zap.String("path", exp.Path), zap.Error(err))
		return types.MatchResult{}, false
	case err != nil:
		m.logger.Warn("invalid keyword path", zap.String("keyword", keyword), zap.Error(err))
		return types.MatchResult{}, false
	case !found:
		m.logger.Warn("keyword not found", zap.String("keyword", keyword), zap.String("path", exp.Path))
		return types.MatchResult{}, false
	}

	actual := value.String()
	m.logger.Info("keyword extracted", zap.String("keyword", keyword), zap.String("path", exp.Path), zap.String("value", actual))

	result := types.MatchResult{Keyword: keyword, Found: true}
	if exp.IsTime() {
		result.Matched, result.Message = m.MatchTime(exp, actual)
	} else {
		result.Matched, result.Message = m.MatchLiteral(exp, actual)
	}
	return result, true
}

// MatchLiteral compares the canonical string form of a value with exp.Value.
func (m *Matcher) MatchLiteral(exp Exp, actual string) (bool, string) {
	if actual != exp.Value {
		return false, fmt.Sprintf("actual: %s, expected: %s, mismatch", actual, exp.Value)
	}
	return true, fmt.Sprintf("actual: %s, expected: %s, matched", actual, exp.Value)
}

// MatchTime reports whether the timestamp in value is younger than the
// threshold in exp.Value. Timestamps in the future always match.
func (m *Matcher) MatchTime(exp Exp, value string) (bool, string) {
	now := m.now().In(m.loc)

	var current, target time.Time
	if exp.Format == "" || exp.Format == DateOnlyFormat {
		y, mo, d := now.Date()
		current = time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
		t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), m.loc)
		if err != nil {
			return false, fmt.Sprintf("parse date %q: %v", value, err)
		}
		target = t
	} else {
		current = now
		t, err := timefmt.ParseInLocation(value, exp.Format, m.loc)
		if err != nil {
			return false, fmt.Sprintf("parse time %q with format %q: %v", value, exp.Format, err)
		}
		target = t
	}

	diff := int64(wallClock(current).Sub(wallClock(target)) / time.Second)
	threshold := int64(ParseThreshold(exp.Value) / time.Second)
	if diff >= threshold {
		msg := fmt.Sprintf("current: %s, target: %s, diff: %ds >= threshold: %ds(%s), out of range",
			current.Format(displayLayout), target.Format(displayLayout), diff, threshold, exp.Value)
		return false, msg
	}
	msg := fmt.Sprintf("current: %s, target: %s, diff: %ds < threshold: %ds(%s), within range",
		current.Format(displayLayout), target.Format(displayLayout), diff, threshold, exp.Value)
	return true, msg
}

// wallClock drops the zone so differences count calendar seconds, keeping a
// day at 86400s across DST transitions.
func wallClock(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), time.UTC)
}
