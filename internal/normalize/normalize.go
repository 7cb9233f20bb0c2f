// Package normalize turns arbitrary upstream patient payloads into canonical
// records. The upstream response shape is not contractually fixed, so the
// pipeline is unwrap (find the record array) then resolve (map aliased keys
// onto canonical fields), with filter and limit applied over canonical names.
package normalize

import (
	"encoding/json"
	"strings"

	"careline/internal/model"
)

// Normalize runs the full pipeline over one upstream envelope.
//
// nameFilter is a case-insensitive substring match against the canonical name;
// empty means no filtering. limit nil means no truncation; a limit <= 0 yields
// an empty set. Both are applied after resolution so their semantics hold
// regardless of upstream field naming, and both preserve upstream order.
func Normalize(envelope json.RawMessage, table AliasTable, nameFilter string, limit *int) (model.PatientSet, error) {
	records, err := Unwrap(envelope)
	if err != nil {
		return nil, err
	}

	set := make(model.PatientSet, 0, len(records))
	needle := strings.ToLower(strings.TrimSpace(nameFilter))
	for _, raw := range records {
		patient := Resolve(raw, table)
		if needle != "" && !strings.Contains(strings.ToLower(patient.Name), needle) {
			continue
		}
		set = append(set, patient)
	}

	if limit != nil {
		if *limit <= 0 {
			return model.PatientSet{}, nil
		}
		if len(set) > *limit {
			set = set[:*limit]
		}
	}
	return set, nil
}
