package tool

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// stringOption returns the option as a string. Absent, null and blank values
// report ok=false. Scalars are formatted; collections are rejected.
func stringOption(decl Declaration, key string) (string, bool, error) {
	v, present := decl.Options[key]
	if !present || v == nil {
		return "", false, nil
	}
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != "", nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(s), true, nil
	default:
		return "", false, invalidOption(decl, key, "a string", v)
	}
}

// stringOptionDefault is stringOption with a fallback for absent values.
func stringOptionDefault(decl Declaration, key, fallback string) (string, error) {
	s, ok, err := stringOption(decl, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return fallback, nil
	}
	return s, nil
}

// firstStringOption returns the first present key, in order.
func firstStringOption(decl Declaration, keys ...string) (string, bool, error) {
	for _, key := range keys {
		s, ok, err := stringOption(decl, key)
		if err != nil {
			return "", false, err
		}
		if ok {
			return s, true, nil
		}
	}
	return "", false, nil
}

// stringListOption returns a list option. A single string is promoted to a
// one-element list. Absent yields an empty, non-nil list.
func stringListOption(decl Declaration, key string) ([]string, error) {
	v, present := decl.Options[key]
	if !present || v == nil {
		return []string{}, nil
	}
	switch items := v.(type) {
	case []string:
		out := make([]string, len(items))
		copy(out, items)
		return out, nil
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, invalidOption(decl, key, "a list of strings", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if strings.TrimSpace(items) == "" {
			return []string{}, nil
		}
		return []string{items}, nil
	default:
		return nil, invalidOption(decl, key, "a list of strings", v)
	}
}

// intOption returns a non-negative integer option, or nil when absent.
func intOption(decl Declaration, key string) (*int, error) {
	v, present := decl.Options[key]
	if !present || v == nil {
		return nil, nil
	}

	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case uint64:
		if x > math.MaxInt32 {
			return nil, invalidOption(decl, key, "a non-negative integer", v)
		}
		n = int(x)
	case float64:
		if x != math.Trunc(x) {
			return nil, invalidOption(decl, key, "a non-negative integer", v)
		}
		n = int(x)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, invalidOption(decl, key, "a non-negative integer", v)
		}
		n = parsed
	default:
		return nil, invalidOption(decl, key, "a non-negative integer", v)
	}
	if n < 0 {
		return nil, invalidOption(decl, key, "a non-negative integer", v)
	}
	return &n, nil
}
