package schema

// JSONSchema renders the schema as a JSON Schema (draft 2020-12 subset)
// object for the action catalog. Cross-field rules are not representable
// and are omitted.
func (s Schema) JSONSchema() map[string]any {
	return objectSchema(s.fields)
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		props[f.name] = fieldSchema(f)
		if f.required && !f.hasDefault {
			required = append(required, f.name)
		}
	}
	out := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldSchema(f Field) map[string]any {
	var out map[string]any
	switch f.typ {
	case TypeObject:
		out = objectSchema(f.props)
	case TypeArray:
		out = map[string]any{"type": "array", "items": fieldSchema(*f.items)}
		if f.minLen != nil {
			out["minItems"] = *f.minLen
		}
		if f.maxLen != nil {
			out["maxItems"] = *f.maxLen
		}
	default:
		out = map[string]any{"type": string(f.typ)}
	}

	if f.description != "" {
		out["description"] = f.description
	}
	if f.example != nil {
		out["examples"] = []any{f.example}
	}
	if f.hasDefault {
		out["default"] = f.def
	}
	if len(f.enum) > 0 {
		out["enum"] = f.enum
	}
	if f.typ == TypeString {
		if f.minLen != nil {
			out["minLength"] = *f.minLen
		}
		if f.maxLen != nil {
			out["maxLength"] = *f.maxLen
		}
		if f.pattern != nil {
			out["pattern"] = f.pattern.String()
		}
		switch f.format {
		case FormatDate:
			out["format"] = "date"
		case FormatTime:
			out["pattern"] = timePattern.String()
		}
	}
	if f.min != nil {
		out["minimum"] = *f.min
	}
	if f.max != nil {
		out["maximum"] = *f.max
	}
	return out
}
