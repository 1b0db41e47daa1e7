package nodes

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/shopspring/decimal"
)

// params reads typed values out of a node's YAML params. Every failure wraps
// domain.ErrConfigInvalid and names the node and key.
type params struct {
	spec domain.NodeSpec
}

func paramsOf(spec domain.NodeSpec) params {
	return params{spec: spec}
}

func (p params) errorf(key, format string, args ...any) error {
	return fmt.Errorf("%w: node %s (%s) param %q: %s",
		domain.ErrConfigInvalid, p.spec.ID, p.spec.Kind, key, fmt.Sprintf(format, args...))
}

func (p params) lookup(key string) (any, bool) {
	v, ok := p.spec.Params[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (p params) String(key, def string) (string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", p.errorf(key, "expected a string, got %T", v)
	}
	return s, nil
}

func (p params) RequiredString(key string) (string, error) {
	s, err := p.String(key, "")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", p.errorf(key, "required")
	}
	return s, nil
}

func (p params) Bool(key string, def bool) (bool, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, p.errorf(key, "expected a boolean, got %q", b)
		}
		return parsed, nil
	default:
		return false, p.errorf(key, "expected a boolean, got %T", v)
	}
}

func (p params) Int(key string, def int) (int, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, p.errorf(key, "expected an integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, p.errorf(key, "expected an integer, got %T", v)
	}
}

// Decimal accepts YAML numbers and numeric strings. Strings keep full precision.
func (p params) Decimal(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, p.errorf(key, "%v", err)
	}
	return d, nil
}

// Duration accepts Go duration strings ("750ms", "5s") or a number of seconds.
func (p params) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, p.errorf(key, "%v", err)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	default:
		return 0, p.errorf(key, "expected a duration, got %T", v)
	}
}

// Strings accepts a list of strings or a single comma-separated string.
func (p params) Strings(key string) ([]string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case string:
		var out []string
		for _, part := range strings.Split(list, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, p.errorf(key, "item %d: expected a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, p.errorf(key, "expected a list of strings, got %T", v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("not a number: %q", n)
		}
		return d, nil
	case fmt.Stringer:
		return toDecimal(n.String())
	default:
		return decimal.Zero, fmt.Errorf("expected a number, got %T", v)
	}
}
