package model

import "time"

// RawRecord is one record exactly as delivered by the upstream API: a JSON
// object with no shape guarantee. Keys and value types vary per deployment.
type RawRecord map[string]interface{}

// FieldKind declares how a canonical field's value is coerced.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindStringList
	KindTimestamp
)

// CanonicalField names one semantic slot of a patient record, decoupled from
// any single upstream API's key naming.
type CanonicalField string

const (
	FieldID          CanonicalField = "id"
	FieldName        CanonicalField = "name"
	FieldAge         CanonicalField = "age"
	FieldDiagnosis   CanonicalField = "diagnosis"
	FieldMedications CanonicalField = "medications"
	FieldAllergies   CanonicalField = "allergies"
	FieldLastUpdated CanonicalField = "lastUpdated"

	// Legacy fields still emitted by older deployments.
	FieldDepartment CanonicalField = "department"
	FieldStatus     CanonicalField = "status"
	FieldAdmitted   CanonicalField = "admitted"
)

// Patient is a fully resolved record: every canonical field present with a
// typed value. List fields are always materialized, scalar fields always hold
// their default when the upstream said nothing.
type Patient struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Age         int      `json:"age"`
	Diagnosis   string   `json:"diagnosis"`
	Medications []string `json:"medications"`
	Allergies   []string `json:"allergies"`
	LastUpdated string   `json:"last_updated"`
	Department  string   `json:"department"`
	Status      string   `json:"status"`
	Admitted    string   `json:"admitted"`
}

// PatientSet preserves upstream order; filtering and truncation never reorder.
type PatientSet []Patient

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in a session's history.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IntentKind tags the classified purpose of a user utterance.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentListTools
	IntentGetPatients
	IntentGreeting
	IntentHelp
)

func (k IntentKind) String() string {
	switch k {
	case IntentListTools:
		return "list_tools"
	case IntentGetPatients:
		return "get_patients"
	case IntentGreeting:
		return "greeting"
	case IntentHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Intent is the routed classification of one utterance. Exactly one kind is
// set per utterance; Unknown carries the original text verbatim so callers
// can hand it to a fallback responder.
type Intent struct {
	Kind IntentKind

	// GetPatients arguments. Nil means "not given".
	NameFilter *string
	Limit      *int

	// Greeting argument.
	GreetName string

	// Unknown payload.
	Utterance string
}
