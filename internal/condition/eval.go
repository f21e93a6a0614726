package condition

import (
	"errors"
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"go.uber.org/zap"

	"github.com/mixhq/agent/internal/jsonpath"
)

// Env holds the variables bound for one evaluation: bool, int, float64 or string.
type Env map[string]any

// Bind extracts each variable from doc. Variables that are not found or are
// not scalars stay unbound, so expressions referencing them fail to compile.
func Bind(vars map[string]string, doc jsonpath.Document, logger *zap.Logger) Env {
	if logger == nil {
		logger = zap.NewNop()
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make(Env, len(vars))
	for _, name := range names {
		query := vars[name]
		value, found, err := jsonpath.Lookup(doc, query)
		switch {
		case errors.Is(err, jsonpath.ErrUnsupportedType):
			logger.Warn("unsupported variable type", zap.String("var", name), zap.String("path", query))
			continue
		case err != nil:
			logger.Warn("invalid variable path", zap.String("var", name), zap.Error(err))
			continue
		case !found:
			logger.Info("variable not found", zap.String("var", name), zap.String("path", query))
			continue
		}
		logger.Info("variable bound", zap.String("var", name), zap.String("path", query), zap.String("kind", value.Kind().String()), zap.Any("value", value.Interface()))
		env[name] = value.Interface()
	}
	return env
}

// Eval evaluates the boolean expression when against env.
func Eval(when string, env Env) (bool, error) {
	if env == nil {
		env = Env{}
	}
	vars := map[string]any(env)

	program, err := expr.Compile(when, expr.Env(vars), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", when, err)
	}
	out, err := expr.Run(program, vars)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", when, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q produced %T, want bool", when, out)
	}
	return result, nil
}
