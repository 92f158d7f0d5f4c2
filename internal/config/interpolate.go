package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// varPattern matches {{ variable }} syntax.
var varPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Interpolator expands {{ env.NAME }} references in config values.
type Interpolator struct {
	lookup func(string) (string, bool)
}

// NewInterpolator returns an Interpolator reading the process environment.
func NewInterpolator() *Interpolator {
	return &Interpolator{lookup: os.LookupEnv}
}

// interpolateValue interpolates variables in a single value.
func (ip *Interpolator) interpolateValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return ip.interpolateString(val)

	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			interpolated, err := ip.interpolateValue(item)
			if err != nil {
				return nil, err
			}
			result[i] = interpolated
		}
		return result, nil

	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			interpolated, err := ip.interpolateValue(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			result[k] = interpolated
		}
		return result, nil

	default:
		return v, nil
	}
}

// interpolateString replaces {{ var }} patterns with their values.
func (ip *Interpolator) interpolateString(s string) (string, error) {
	var firstErr error
	result := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := varPattern.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}

		val, err := ip.resolve(inner[1])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// resolve resolves a variable expression with an optional filter chain.
func (ip *Interpolator) resolve(expr string) (string, error) {
	parts := strings.Split(expr, "|")
	name := strings.TrimSpace(parts[0])

	val, found, err := ip.lookupVariable(name)
	if err != nil {
		return "", err
	}

	for _, filter := range parts[1:] {
		val, found, err = applyFilter(val, found, strings.TrimSpace(filter))
		if err != nil {
			return "", err
		}
	}

	if !found {
		return "", fmt.Errorf("undefined variable: %s", name)
	}
	return val, nil
}

// lookupVariable looks up env.NAME.
func (ip *Interpolator) lookupVariable(name string) (string, bool, error) {
	key, ok := strings.CutPrefix(name, "env.")
	if !ok || key == "" {
		return "", false, fmt.Errorf("unsupported variable: %s (expected env.NAME)", name)
	}
	val, found := ip.lookup(key)
	return val, found, nil
}

// applyFilter applies a filter to a value.
func applyFilter(val string, found bool, filter string) (string, bool, error) {
	// Parse filter name and arguments
	filterName := filter
	var filterArg string

	if idx := strings.Index(filter, "("); idx > 0 {
		filterName = strings.TrimSpace(filter[:idx])
		argPart := filter[idx+1:]
		if endIdx := strings.LastIndex(argPart, ")"); endIdx >= 0 {
			filterArg = strings.TrimSpace(argPart[:endIdx])
			// Remove quotes from argument
			filterArg = strings.Trim(filterArg, "'\"")
		}
	}

	switch filterName {
	case "default":
		if !found || val == "" {
			return filterArg, true, nil
		}
		return val, true, nil

	case "lower":
		return strings.ToLower(val), found, nil

	case "upper":
		return strings.ToUpper(val), found, nil

	case "trim":
		return strings.TrimSpace(val), found, nil

	default:
		return "", false, fmt.Errorf("unknown filter: %s", filterName)
	}
}
