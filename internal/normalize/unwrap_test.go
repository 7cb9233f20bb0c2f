package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"careline/internal/model"
)

func TestUnwrapBareArray(t *testing.T) {
	records, err := Unwrap(json.RawMessage(`[{"name":"Ann"},{"name":"Bob"}]`))
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if len(records) != 2 || records[0]["name"] != "Ann" || records[1]["name"] != "Bob" {
		t.Fatalf("records=%v", records)
	}
}

func TestUnwrapDropsNonObjectElements(t *testing.T) {
	records, err := Unwrap(json.RawMessage(`[{"name":"Ann"}, 7, "x", {"name":"Bob"}]`))
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len=%d want 2", len(records))
	}
}

func TestUnwrapEnvelopeKeyPriority(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantKey string
	}{
		{name: "data", body: `{"data":[{"k":"data"}],"patients":[{"k":"patients"}]}`, wantKey: "data"},
		{name: "patients", body: `{"total":1,"patients":[{"k":"patients"}]}`, wantKey: "patients"},
		{name: "results", body: `{"results":[{"k":"results"}]}`, wantKey: "results"},
		{name: "records", body: `{"records":[{"k":"records"}]}`, wantKey: "records"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			records, err := Unwrap(json.RawMessage(tc.body))
			if err != nil {
				t.Fatalf("Unwrap: %v", err)
			}
			if len(records) != 1 || records[0]["k"] != tc.wantKey {
				t.Fatalf("records=%v want key %q", records, tc.wantKey)
			}
		})
	}
}

func TestUnwrapKnownKeyMustBeArray(t *testing.T) {
	// "data" present but scalar: skip it and take the next candidate.
	records, err := Unwrap(json.RawMessage(`{"data":"nope","patients":[{"k":"patients"}]}`))
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if len(records) != 1 || records[0]["k"] != "patients" {
		t.Fatalf("records=%v", records)
	}
}

func TestUnwrapFallbackScanDocumentOrder(t *testing.T) {
	// No well-known key; first array-of-objects member in document order wins,
	// skipping arrays with non-object elements.
	body := `{"count": 2, "tags": ["a","b"], "rows": [{"name":"Ann"}], "more": [{"name":"Zed"}]}`
	records, err := Unwrap(json.RawMessage(body))
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "Ann" {
		t.Fatalf("records=%v", records)
	}
}

func TestUnwrapSingleObjectFallback(t *testing.T) {
	records, err := Unwrap(json.RawMessage(`{"name":"Solo","age":30}`))
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "Solo" {
		t.Fatalf("records=%v", records)
	}
}

func TestUnwrapMalformed(t *testing.T) {
	for _, body := range []string{`null`, `42`, `"text"`, `true`, ``} {
		_, err := Unwrap(json.RawMessage(body))
		if !errors.Is(err, model.ErrMalformedResponse) {
			t.Fatalf("Unwrap(%q) err=%v want ErrMalformedResponse", body, err)
		}
	}
}

func TestUnwrapIdempotentOnBareArray(t *testing.T) {
	first, err := Unwrap(json.RawMessage(`{"patients":[{"name":"Ann"},{"name":"Bob"}]}`))
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	reencoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Unwrap(reencoded)
	if err != nil {
		t.Fatalf("Unwrap again: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("len=%d want %d", len(second), len(first))
	}
	for i := range first {
		if first[i]["name"] != second[i]["name"] {
			t.Fatalf("record %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}
