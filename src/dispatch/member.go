package dispatch

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"commvault-ops/src/cvapi"
)

// MemberKind says how a member is invoked.
type MemberKind int

const (
	// Method members are called with bound arguments.
	Method MemberKind = iota
	// Property members are assigned a single value.
	Property
)

func (k MemberKind) String() string {
	if k == Property {
		return "property"
	}
	return "method"
}

// ParamType is the accepted type of an argument.
type ParamType int

const (
	String ParamType = iota
	Int
	Bool
	StringList
)

func (t ParamType) String() string {
	switch t {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case StringList:
		return "list"
	}
	return "string"
}

// Param describes one named argument.
type Param struct {
	Name     string
	Type     ParamType
	Required bool
	Default  any
	// Choices, when set, limits a string argument (case-insensitive).
	Choices []string
}

// Member is one operation exposed by a node or collection.
type Member struct {
	Name     string
	Kind     MemberKind
	Params   []Param
	Mutating bool
	Doc      string

	call func(ctx context.Context, target any, args Args) (any, error)
	set  func(ctx context.Context, target any, value any) error
}

// Args holds bound argument values. Every declared parameter is present,
// either as supplied or as its default.
type Args struct {
	values   map[string]any
	progress func(cvapi.JobSummary)
}

func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

func (a Args) Int(name string) int {
	n, _ := a.values[name].(int)
	return n
}

func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

func (a Args) Strings(name string) []string {
	s, _ := a.values[name].([]string)
	return s
}

// bind checks raw against the parameter list and applies defaults. All
// problems are reported together.
func bind(m *Member, raw map[string]any) (Args, error) {
	var errs *multierror.Error
	declared := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		declared[p.Name] = true
	}
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if !declared[k] {
			errs = multierror.Append(errs, fmt.Errorf("unknown argument %q", k))
		}
	}

	args := Args{values: make(map[string]any, len(m.Params))}
	for _, p := range m.Params {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				errs = multierror.Append(errs, fmt.Errorf("missing required argument %q", p.Name))
				continue
			}
			args.values[p.Name] = p.Default
			continue
		}
		cv, err := coerce(p, v)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		args.values[p.Name] = cv
	}
	if err := errs.ErrorOrNil(); err != nil {
		return Args{}, &ValidationError{Operation: m.Name, Err: flatten(errs)}
	}
	return args, nil
}

// propertyValue picks the value of a property write out of the argument map.
func propertyValue(m *Member, raw map[string]any) (any, error) {
	var v any
	switch len(raw) {
	case 0:
		return nil, &ValidationError{Operation: m.Name, Err: fmt.Errorf("property %s needs a value in args", m.Name)}
	case 1:
		for _, only := range raw {
			v = only
		}
	default:
		var ok bool
		if v, ok = raw[m.Name]; !ok {
			if v, ok = raw["value"]; !ok {
				return nil, &ValidationError{Operation: m.Name, Err: fmt.Errorf("property %s takes one value, got %d; key it %q or \"value\"", m.Name, len(raw), m.Name)}
			}
		}
	}
	if len(m.Params) == 0 {
		return v, nil
	}
	cv, err := coerce(m.Params[0], v)
	if err != nil {
		return nil, &ValidationError{Operation: m.Name, Err: err}
	}
	return cv, nil
}

func coerce(p Param, v any) (any, error) {
	switch p.Type {
	case String:
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case int, int64, uint64:
			s = fmt.Sprint(x)
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("argument %q: expected string, got %T", p.Name, v)
		}
		if len(p.Choices) > 0 {
			for _, c := range p.Choices {
				if strings.EqualFold(c, s) {
					return c, nil
				}
			}
			return nil, fmt.Errorf("argument %q: %q is not one of %s", p.Name, s, strings.Join(p.Choices, ", "))
		}
		return s, nil
	case Int:
		switch x := v.(type) {
		case int:
			return x, nil
		case int64:
			return int(x), nil
		case uint64:
			return int(x), nil
		case float64:
			if x == math.Trunc(x) {
				return int(x), nil
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
				return n, nil
			}
		}
		return nil, fmt.Errorf("argument %q: expected integer, got %v", p.Name, v)
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "yes", "y", "on", "1":
				return true, nil
			case "false", "no", "n", "off", "0":
				return false, nil
			}
		}
		return nil, fmt.Errorf("argument %q: expected boolean, got %v", p.Name, v)
	case StringList:
		switch x := v.(type) {
		case string:
			return []string{x}, nil
		case []string:
			return x, nil
		case []any:
			out := make([]string, 0, len(x))
			for _, e := range x {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("argument %q: expected list of strings, found %T", p.Name, e)
				}
				out = append(out, s)
			}
			return out, nil
		}
		return nil, fmt.Errorf("argument %q: expected list of strings, got %T", p.Name, v)
	}
	return v, nil
}

func flatten(errs *multierror.Error) error {
	errs.ErrorFormat = func(es []error) string {
		parts := make([]string, len(es))
		for i, e := range es {
			parts[i] = e.Error()
		}
		return strings.Join(parts, "; ")
	}
	return errs
}
