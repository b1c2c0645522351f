package schema

import (
	"regexp"
)

// Type is the JSON type of a field.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

const (
	FormatDate = "date" // YYYY-MM-DD, must be a real calendar day
	FormatTime = "time" // HH:MM, 24h
)

// Field declares one input field. Builders return copies, so a Field can be
// shared as a template:
//
//	day := schema.String("").Date()
//	schema.New(day.Named("startDate").Required(), day.Named("endDate").Required())
type Field struct {
	name        string
	typ         Type
	required    bool
	hasDefault  bool
	def         any
	description string
	example     any
	pattern     *regexp.Regexp
	format      string
	enum        []string
	min, max    *float64
	minLen      *int
	maxLen      *int
	props       []Field
	items       *Field
}

func String(name string) Field  { return Field{name: name, typ: TypeString} }
func Integer(name string) Field { return Field{name: name, typ: TypeInteger} }
func Number(name string) Field  { return Field{name: name, typ: TypeNumber} }
func Bool(name string) Field    { return Field{name: name, typ: TypeBoolean} }

// Object declares a nested object with its own fields. Unknown keys inside
// it are rejected like at the top level.
func Object(name string, fields ...Field) Field {
	return Field{name: name, typ: TypeObject, props: fields}
}

// Array declares a list whose elements all satisfy items. The item's name
// is ignored.
func Array(name string, items Field) Field {
	items.name = ""
	return Field{name: name, typ: TypeArray, items: &items}
}

func (f Field) Name() string { return f.name }
func (f Field) Type() Type   { return f.typ }

func (f Field) Named(name string) Field {
	f.name = name
	return f
}

func (f Field) Required() Field {
	f.required = true
	return f
}

// Default is applied when the field is absent or null. A defaulted field is
// never reported as missing.
func (f Field) Default(v any) Field {
	f.hasDefault = true
	f.def = v
	return f
}

func (f Field) Describe(s string) Field {
	f.description = s
	return f
}

// Example sets the value shown in the catalog and used by Schema.Example.
// Fields with a Pattern need one.
func (f Field) Example(v any) Field {
	f.example = v
	return f
}

// Pattern panics on an invalid expression; schemas are built at boot.
func (f Field) Pattern(expr string) Field {
	f.pattern = regexp.MustCompile(expr)
	return f
}

func (f Field) Date() Field {
	f.format = FormatDate
	return f
}

func (f Field) Time() Field {
	f.format = FormatTime
	return f
}

func (f Field) Enum(values ...string) Field {
	f.enum = append([]string(nil), values...)
	return f
}

func (f Field) Min(v float64) Field {
	f.min = &v
	return f
}

func (f Field) Max(v float64) Field {
	f.max = &v
	return f
}

func (f Field) Range(lo, hi float64) Field {
	return f.Min(lo).Max(hi)
}

// MinLen bounds string length in runes, or array length.
func (f Field) MinLen(n int) Field {
	f.minLen = &n
	return f
}

// MaxLen bounds string length in runes, or array length.
func (f Field) MaxLen(n int) Field {
	f.maxLen = &n
	return f
}

func (f Field) Len(lo, hi int) Field {
	return f.MinLen(lo).MaxLen(hi)
}
