package rule

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MarkerTime selects time-threshold matching; any other marker is literal.
	MarkerTime = "T"
	// DateOnlyFormat compares at day granularity against local midnight.
	DateOnlyFormat = "%Y-%m-%d"
)

var ErrMalformedExpression = errors.New("malformed rule expression")

// ConfigError reports a keyword expression that cannot be used.
type ConfigError struct {
	Expr string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %q: %v, expected marker|path|value[|format]", e.Expr, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Exp is a parsed keyword rule.
type Exp struct {
	Marker string
	Path   string
	Value  string
	Format string
}

func (e Exp) IsTime() bool { return e.Marker == MarkerTime }

// Parse splits a "marker|path|value[|format]" expression. Only the value is
// trimmed. The format is read only when exactly four fields are present.
func Parse(expr string) (Exp, error) {
	items := strings.Split(expr, "|")
	if len(items) < 3 {
		return Exp{}, &ConfigError{Expr: expr, Err: ErrMalformedExpression}
	}

	exp := Exp{
		Marker: items[0],
		Path:   items[1],
		Value:  strings.TrimSpace(items[2]),
	}
	if len(items) == 4 {
		exp.Format = items[3]
	}
	return exp, nil
}
