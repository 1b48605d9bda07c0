// Package service is the static catalog of built-in services (spec.md
// §3 "Service instance" and §4.1 "Service registry", C4). Each service
// is a Go type implementing Service, built from a validated
// ServiceOptions record by the service's factory.
package service

import "fmt"

// OptionKind is one of the option value kinds spec.md §3 allows, plus
// KindStringMap for `common.environment` (spec.md §6's services.toml
// grammar is the one place a nested table of arbitrary string keys
// appears).
type OptionKind int

const (
	KindString OptionKind = iota
	KindStringList
	KindBool
	KindInt
	KindStringMap
)

// OptionSpec describes one key in a service's options table.
type OptionSpec struct {
	Name        string
	Kind        OptionKind
	Default     interface{}
	Description string
	Deprecated  bool
	// Min/Max bound an OptionKind == KindInt value; both zero means
	// unbounded.
	Min, Max int
}

// Schema is the full option table for one service.
type Schema []OptionSpec

// Warning is a non-fatal validation note (deprecated key/service used,
// etc.) surfaced to the user but never blocking activation.
type Warning struct {
	Service string
	Key     string
	Message string
}

func (w Warning) String() string {
	if w.Key != "" {
		return fmt.Sprintf("%s.%s: %s", w.Service, w.Key, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Service, w.Message)
}

// Options is the decoded, defaulted, type-checked record produced by
// Validate. Keys not present in the raw table carry the schema default.
type Options map[string]interface{}

func (o Options) String(key string) string {
	v, _ := o[key].(string)
	return v
}

func (o Options) StringList(key string) []string {
	v, _ := o[key].([]string)
	return v
}

func (o Options) Bool(key string) bool {
	v, _ := o[key].(bool)
	return v
}

func (o Options) Int(key string) int {
	v, _ := o[key].(int)
	return v
}

func (o Options) StringMap(key string) map[string]string {
	v, _ := o[key].(map[string]string)
	return v
}

// Validate rejects unknown keys, type mismatches, and out-of-range
// integers (spec.md §4.1's validate(name, table)), filling every
// missing key with its schema default and returning warnings for
// deprecated keys.
func (s Schema) Validate(serviceName string, raw map[string]interface{}) (Options, []Warning, error) {
	byName := make(map[string]OptionSpec, len(s))
	for _, spec := range s {
		byName[spec.Name] = spec
	}

	out := make(Options, len(s))
	var warnings []Warning

	for key, rawVal := range raw {
		spec, known := byName[key]
		if !known {
			return nil, nil, fmt.Errorf("service %q: unknown option %q", serviceName, key)
		}
		val, err := coerce(spec, rawVal)
		if err != nil {
			return nil, nil, fmt.Errorf("service %q: option %q: %w", serviceName, key, err)
		}
		out[key] = val
		if spec.Deprecated {
			warnings = append(warnings, Warning{Service: serviceName, Key: key, Message: "option is deprecated"})
		}
	}

	for _, spec := range s {
		if _, present := out[spec.Name]; !present {
			out[spec.Name] = spec.Default
		}
	}

	return out, warnings, nil
}

func coerce(spec OptionSpec, raw interface{}) (interface{}, error) {
	switch spec.Kind {
	case KindString:
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return v, nil
	case KindBool:
		v, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return v, nil
	case KindInt:
		v, err := toInt(raw)
		if err != nil {
			return nil, err
		}
		if spec.Min != 0 || spec.Max != 0 {
			if v < spec.Min || v > spec.Max {
				return nil, fmt.Errorf("value %d out of range [%d, %d]", v, spec.Min, spec.Max)
			}
		}
		return v, nil
	case KindStringList:
		switch rv := raw.(type) {
		case []string:
			return rv, nil
		case string:
			return []string{rv}, nil
		case []interface{}:
			out := make([]string, 0, len(rv))
			for _, e := range rv {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("expected list of strings, element is %T", e)
				}
				out = append(out, s)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("expected list of strings, got %T", raw)
		}
	case KindStringMap:
		switch rv := raw.(type) {
		case map[string]string:
			return rv, nil
		case map[string]interface{}:
			out := make(map[string]string, len(rv))
			for k, e := range rv {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("expected table of strings, key %q is %T", k, e)
				}
				out[k] = s
			}
			return out, nil
		default:
			return nil, fmt.Errorf("expected table of strings, got %T", raw)
		}
	default:
		return nil, fmt.Errorf("unknown option kind %v", spec.Kind)
	}
}

func toInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}
