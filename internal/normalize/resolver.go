package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"careline/internal/model"
)

// Resolve maps one raw upstream record onto a canonical Patient. Resolution
// is total: it never fails, and every canonical field ends up populated with
// either a coerced upstream value or the field's default.
//
// Alias scan semantics: the first alias key that exists in the raw record
// wins, even when its value is null or empty. Later aliases are not consulted
// once a key is present.
func Resolve(raw model.RawRecord, table AliasTable) model.Patient {
	var p model.Patient
	for _, spec := range table.specs {
		value, found := lookupAlias(raw, spec.Aliases)
		assignField(&p, spec, value, found)
	}
	return p
}

func lookupAlias(raw model.RawRecord, aliases []string) (interface{}, bool) {
	for _, alias := range aliases {
		if v, ok := raw[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

func assignField(p *model.Patient, spec FieldSpec, value interface{}, found bool) {
	switch spec.Field {
	case model.FieldID:
		p.ID = coerceString(value, found, spec)
	case model.FieldName:
		p.Name = coerceString(value, found, spec)
	case model.FieldAge:
		p.Age = coerceInt(value, found)
	case model.FieldDiagnosis:
		p.Diagnosis = coerceString(value, found, spec)
	case model.FieldMedications:
		p.Medications = coerceStringList(value)
	case model.FieldAllergies:
		p.Allergies = coerceStringList(value)
	case model.FieldLastUpdated:
		p.LastUpdated = coerceString(value, found, spec)
	case model.FieldDepartment:
		p.Department = coerceString(value, found, spec)
	case model.FieldStatus:
		p.Status = coerceString(value, found, spec)
	case model.FieldAdmitted:
		p.Admitted = coerceString(value, found, spec)
	}
}

// coerceString renders any scalar as text. A missing key or a null value
// yields the field default; everything else stringifies permissively.
func coerceString(value interface{}, found bool, spec FieldSpec) string {
	if !found || value == nil {
		return defaultFor(spec.Field, spec.Kind).(string)
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return formatJSONNumber(v)
	case bool:
		return strconv.FormatBool(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, coerceString(item, true, spec))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// coerceInt converts permissively and never fails; anything that does not
// look like a whole number falls back to zero.
func coerceInt(value interface{}, found bool) int {
	if !found || value == nil {
		return 0
	}
	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		return 0
	case bool:
		return 0
	default:
		return 0
	}
}

// coerceStringList materializes a list field. A single delimited string is
// split on commas with per-part trimming; empty parts are dropped. A JSON
// array has each element stringified. Anything else yields an empty list.
func coerceStringList(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return []string{}
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case nil:
				continue
			case string:
				if it = strings.TrimSpace(it); it != "" {
					out = append(out, it)
				}
			case float64:
				out = append(out, formatJSONNumber(it))
			default:
				out = append(out, fmt.Sprintf("%v", it))
			}
		}
		return out
	default:
		return []string{}
	}
}

// formatJSONNumber renders a decoded JSON number without a trailing ".0" for
// whole values, matching how upstream ids like 42 should read back.
func formatJSONNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
