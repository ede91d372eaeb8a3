package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/civil"
	"github.com/lifeos-tools/attache/internal/resolver"
)

// decoder reads loosely typed action arguments. Every failure names the
// offending field so the caller can fix the request.
type decoder struct {
	args map[string]any
	zone *civil.Zone
}

func (d decoder) text(key string) (string, error) {
	v, ok := d.args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: args.%s must be a string", internal.ErrValidation, key)
	}
	return strings.TrimSpace(s), nil
}

func (d decoder) requireText(key string) (string, error) {
	s, err := d.text(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: args.%s is required", internal.ErrValidation, key)
	}
	return s, nil
}

// instant parses a civil timestamp argument. The second result reports
// whether the value was a bare date, the third whether the key was
// present at all.
func (d decoder) instant(key string) (time.Time, bool, bool, error) {
	s, err := d.text(key)
	if err != nil || s == "" {
		return time.Time{}, false, false, err
	}
	t, dateOnly, err := d.zone.ParseInstant(s)
	if err != nil {
		return time.Time{}, false, true, fmt.Errorf("args.%s: %w", key, err)
	}
	return t, dateOnly, true, nil
}

func (d decoder) requireInstant(key string) (time.Time, bool, error) {
	t, dateOnly, ok, err := d.instant(key)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, fmt.Errorf("%w: args.%s is required", internal.ErrValidation, key)
	}
	return t, dateOnly, nil
}

// windowHint narrows a fuzzy event search to one civil day when the
// request names a date.
func (d decoder) windowHint() (*resolver.Window, error) {
	day, _, ok, err := d.instant("date")
	if err != nil || !ok {
		return nil, err
	}
	from, to := d.zone.DayWindow(day)
	return &resolver.Window{From: from, To: to}, nil
}

// count reads an integer argument. JSON numbers arrive as float64, so
// both forms are accepted as long as the value is whole.
func (d decoder) count(key string, def int) (int, error) {
	v, ok := d.args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: args.%s must be a whole number", internal.ErrValidation, key)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: args.%s must be a number", internal.ErrValidation, key)
	}
}

func (d decoder) flag(key string) (bool, bool, error) {
	v, ok := d.args[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, true, fmt.Errorf("%w: args.%s must be true or false", internal.ErrValidation, key)
	}
	return b, true, nil
}

// textList accepts either a JSON array of strings or one comma-joined
// string.
func (d decoder) textList(key string) ([]string, error) {
	v, ok := d.args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case string:
		return splitTrim(list), nil
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: args.%s must be a list of strings", internal.ErrValidation, key)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: args.%s must be a list of strings", internal.ErrValidation, key)
	}
}

func splitTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
