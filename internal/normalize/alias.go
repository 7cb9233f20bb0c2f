package normalize

import (
	"strings"

	"careline/internal/model"
)

// FieldSpec declares one canonical field: the source keys that may carry it,
// in priority order, and how its value is coerced.
type FieldSpec struct {
	Field   model.CanonicalField
	Aliases []string
	Kind    model.FieldKind
}

// AliasTable is the ordered set of field specs tried during resolution.
// Order matters twice: specs resolve in declared order, and within one spec
// the first alias key present in the raw record wins.
type AliasTable struct {
	specs []FieldSpec
}

// DefaultAliasTable covers the upstream shapes seen in production so far.
// New API shapes are added by extending alias lists, not by code.
func DefaultAliasTable() AliasTable {
	return AliasTable{specs: []FieldSpec{
		{Field: model.FieldID, Kind: model.KindString, Aliases: []string{"id", "patient_id", "patientId", "PatientId", "ID"}},
		{Field: model.FieldName, Kind: model.KindString, Aliases: []string{"name", "patient_name", "fullName", "full_name", "Name"}},
		{Field: model.FieldAge, Kind: model.KindInt, Aliases: []string{"age", "patient_age", "Age"}},
		{Field: model.FieldDiagnosis, Kind: model.KindString, Aliases: []string{"diagnosis", "Diagnosis", "condition", "medical_condition"}},
		{Field: model.FieldMedications, Kind: model.KindStringList, Aliases: []string{"medications", "Medications", "meds", "drugs", "prescriptions"}},
		{Field: model.FieldAllergies, Kind: model.KindStringList, Aliases: []string{"allergies", "Allergies", "allergy_list", "medical_allergies"}},
		{Field: model.FieldLastUpdated, Kind: model.KindTimestamp, Aliases: []string{"last_updated", "LastUpdated", "lastUpdated", "updated_at", "modified_date"}},
		{Field: model.FieldDepartment, Kind: model.KindString, Aliases: []string{"department", "dept", "department_name"}},
		{Field: model.FieldStatus, Kind: model.KindString, Aliases: []string{"status", "patient_status", "state"}},
		{Field: model.FieldAdmitted, Kind: model.KindTimestamp, Aliases: []string{"admission_date", "admissionDate", "admitted", "date_admitted"}},
	}}
}

// NewAliasTable builds a table from explicit specs, preserving their order.
// Used by tests and by config when a deployment replaces the defaults wholesale.
func NewAliasTable(specs []FieldSpec) AliasTable {
	return AliasTable{specs: append([]FieldSpec(nil), specs...)}
}

// Specs returns the ordered field specs. The slice is a copy.
func (t AliasTable) Specs() []FieldSpec {
	return append([]FieldSpec(nil), t.specs...)
}

// FieldByName maps a config-file field name to its canonical field. Both the
// canonical names and the snake_case variants used in TOML are accepted;
// anything else maps to an empty field, which Extend then ignores.
func FieldByName(name string) model.CanonicalField {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "id":
		return model.FieldID
	case "name":
		return model.FieldName
	case "age":
		return model.FieldAge
	case "diagnosis":
		return model.FieldDiagnosis
	case "medications":
		return model.FieldMedications
	case "allergies":
		return model.FieldAllergies
	case "lastupdated", "last_updated":
		return model.FieldLastUpdated
	case "department":
		return model.FieldDepartment
	case "status":
		return model.FieldStatus
	case "admitted", "admission_date":
		return model.FieldAdmitted
	default:
		return ""
	}
}

// Extend prepends extra aliases to the named field, keeping the built-in
// aliases as lower-priority fallbacks. Unknown field names are ignored so a
// stale config entry cannot break resolution.
func (t AliasTable) Extend(field model.CanonicalField, aliases []string) AliasTable {
	out := AliasTable{specs: make([]FieldSpec, len(t.specs))}
	copy(out.specs, t.specs)
	for i := range out.specs {
		if out.specs[i].Field != field {
			continue
		}
		merged := make([]string, 0, len(aliases)+len(out.specs[i].Aliases))
		for _, a := range aliases {
			if a = strings.TrimSpace(a); a != "" {
				merged = append(merged, a)
			}
		}
		merged = append(merged, out.specs[i].Aliases...)
		out.specs[i].Aliases = merged
	}
	return out
}

// Default returns the rendered default for a field kind when no alias key is
// present (or the present value cannot supply anything).
func defaultFor(field model.CanonicalField, kind model.FieldKind) interface{} {
	switch kind {
	case model.KindInt:
		return 0
	case model.KindStringList:
		return []string{}
	default:
		if field == model.FieldName {
			return "Unknown"
		}
		return "N/A"
	}
}
