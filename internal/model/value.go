package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// BaseType is the scalar part of a property type tag.
type BaseType int

// Scalar property types. BaseUnknown covers type names the schema may use
// that carry no checks.
const (
	BaseUnknown BaseType = iota
	BaseString
	BaseBool
	BaseDate
	BaseRef
)

// PropertyType is a parsed type tag such as "string", "date[]" or "ref".
type PropertyType struct {
	Name  string
	Base  BaseType
	Array bool
}

// ParseType parses a schema type tag. Unknown names parse to BaseUnknown and
// keep their spelling in Name.
func ParseType(tag string) PropertyType {
	t := PropertyType{Name: tag}
	base := tag
	if strings.HasSuffix(base, "[]") {
		t.Array = true
		base = strings.TrimSuffix(base, "[]")
	}
	switch base {
	case "string":
		t.Base = BaseString
	case "bool":
		t.Base = BaseBool
	case "date":
		t.Base = BaseDate
	case "ref":
		t.Base = BaseRef
	}
	return t
}

// IsRef reports whether the type is ref or ref[].
func (t PropertyType) IsRef() bool { return t.Base == BaseRef }

func (t PropertyType) String() string { return t.Name }

// ValueKind tags the variant held by a Value.
type ValueKind int

// Value variants.
const (
	KindUntyped ValueKind = iota
	KindString
	KindBool
	KindDate
	KindRef
	KindStringArray
	KindBoolArray
	KindDateArray
	KindRefArray
)

// Value is a property or qualifier value resolved once against its declared
// type. When the raw value does not conform, Err describes why and Raw keeps
// what was written.
type Value struct {
	Kind  ValueKind
	Raw   any
	Str   string
	Bool  bool
	Date  time.Time
	Ref   Ref
	Items []Value
	Err   error
}

// Ref is a typed pointer of the form "<id>:<Class>".
type Ref struct {
	ID    string
	Class string
}

func (r Ref) String() string { return r.ID + ":" + r.Class }

var refClassRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ParseRef splits "<id>:<Class>" on the last colon. Ids may contain colons.
func ParseRef(s string) (Ref, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return Ref{}, fmt.Errorf("reference %q must have the form <id>:<Class>", s)
	}
	id, class := s[:i], s[i+1:]
	if id == "" || class == "" {
		return Ref{}, fmt.Errorf("reference %q must have a non-empty id and class", s)
	}
	if !refClassRe.MatchString(class) {
		return Ref{}, fmt.Errorf("reference %q has an invalid class name %q", s, class)
	}
	return Ref{ID: id, Class: class}, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts ISO dates and timestamps and falls back to the looser
// spellings dateparse recognises ("2021/04/01", "April 1, 2021",
// "2021-04-01T10:00Z"). Out-of-range days are rejected.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q is not a valid date", s)
}

// Untyped wraps a raw value that has no declared type.
func Untyped(raw any) Value {
	return Value{Kind: KindUntyped, Raw: raw}
}

// Resolve converts raw into the variant matching t.
func Resolve(t PropertyType, raw any) Value {
	if t.Array {
		return resolveArray(t, raw)
	}
	return resolveScalar(t.Base, raw)
}

func resolveArray(t PropertyType, raw any) Value {
	v := Value{Raw: raw}
	switch t.Base {
	case BaseString:
		v.Kind = KindStringArray
	case BaseBool:
		v.Kind = KindBoolArray
	case BaseDate:
		v.Kind = KindDateArray
	case BaseRef:
		v.Kind = KindRefArray
	default:
		v.Kind = KindUntyped
	}
	list, ok := raw.([]any)
	if !ok {
		v.Err = fmt.Errorf("expected %s, got %s", t.Name, TypeName(raw))
		return v
	}
	v.Items = make([]Value, len(list))
	for i, item := range list {
		v.Items[i] = resolveScalar(t.Base, item)
	}
	return v
}

func resolveScalar(base BaseType, raw any) Value {
	v := Value{Raw: raw}
	switch base {
	case BaseString:
		v.Kind = KindString
		s, ok := raw.(string)
		if !ok {
			v.Err = fmt.Errorf("expected string, got %s", TypeName(raw))
			return v
		}
		v.Str = s
	case BaseBool:
		v.Kind = KindBool
		b, ok := raw.(bool)
		if !ok {
			v.Err = fmt.Errorf("expected bool, got %s", TypeName(raw))
			return v
		}
		v.Bool = b
	case BaseDate:
		v.Kind = KindDate
		switch d := raw.(type) {
		case time.Time:
			v.Date = d
		case string:
			t, err := ParseDate(d)
			if err != nil {
				v.Err = err
				return v
			}
			v.Date = t
		default:
			v.Err = fmt.Errorf("expected date, got %s", TypeName(raw))
		}
	case BaseRef:
		v.Kind = KindRef
		s, ok := raw.(string)
		if !ok {
			v.Err = fmt.Errorf("expected reference string, got %s", TypeName(raw))
			return v
		}
		ref, err := ParseRef(s)
		if err != nil {
			v.Err = err
			return v
		}
		v.Ref = ref
	default:
		v.Kind = KindUntyped
	}
	return v
}

// Refs returns every reference held by a ref or ref[] value, skipping
// elements that failed to parse.
func (v Value) Refs() []Ref {
	switch v.Kind {
	case KindRef:
		if v.Err == nil {
			return []Ref{v.Ref}
		}
	case KindRefArray:
		var out []Ref
		for _, item := range v.Items {
			if item.Err == nil {
				out = append(out, item.Ref)
			}
		}
		return out
	}
	return nil
}

// Strings renders the value as one string per scalar, so array elements can
// be matched individually.
func (v Value) Strings() []string {
	if v.Items != nil {
		out := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			out = append(out, item.String())
		}
		return out
	}
	if list, ok := v.Raw.([]any); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, formatRaw(item))
		}
		return out
	}
	return []string{v.String()}
}

func (v Value) String() string {
	if v.Err != nil {
		return formatRaw(v.Raw)
	}
	switch v.Kind {
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		if s, ok := v.Raw.(string); ok {
			return s
		}
		if v.Date.Hour() == 0 && v.Date.Minute() == 0 && v.Date.Second() == 0 {
			return v.Date.Format("2006-01-02")
		}
		return v.Date.Format(time.RFC3339)
	case KindRef:
		return v.Ref.String()
	case KindStringArray, KindBoolArray, KindDateArray, KindRefArray:
		return strings.Join(v.Strings(), ", ")
	}
	return formatRaw(v.Raw)
}

func formatRaw(raw any) string {
	switch r := raw.(type) {
	case nil:
		return ""
	case string:
		return r
	case []any:
		parts := make([]string, len(r))
		for i, item := range r {
			parts[i] = formatRaw(item)
		}
		return strings.Join(parts, ", ")
	case time.Time:
		return r.Format(time.RFC3339)
	}
	return fmt.Sprint(raw)
}

// TypeName names the dynamic type of a decoded YAML value for messages.
func TypeName(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64, uint64, float64:
		return "number"
	case time.Time:
		return "date"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", raw)
}
