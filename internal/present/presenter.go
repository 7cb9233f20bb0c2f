// Package present renders canonical patient sets and failures as stable,
// greppable text. Output is plain text only; callers that want markup or
// terminal color layer it on afterwards.
package present

import (
	"errors"
	"fmt"
	"strings"

	"careline/internal/model"
)

// RequestEcho repeats the query back to the reader so a rendered block is
// self-describing.
type RequestEcho struct {
	NameFilter string
	Limit      *int
}

// Field labels are fixed so downstream consumers can post-process rendered
// text without re-parsing free prose. Keep in sync with the round-trip test.
const (
	labelName        = "Name:"
	labelID          = "ID:"
	labelAge         = "Age:"
	labelDiagnosis   = "Diagnosis:"
	labelMedications = "Medications:"
	labelAllergies   = "Allergies:"
	labelLastUpdated = "Last Updated:"
	labelDepartment  = "Department:"
	labelStatus      = "Status:"
	labelAdmitted    = "Admitted:"
)

// NoneReported is the literal rendering of an empty list field.
const NoneReported = "None reported"

// Render produces the deterministic text block for a patient set. Every
// canonical field of every patient appears, in a fixed order, defaults
// included. An empty set renders the explicit no-results message, which is
// not a failure.
func Render(set model.PatientSet, echo RequestEcho) string {
	if len(set) == 0 {
		return noResults(echo)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d patient(s)%s:\n", len(set), echoSuffix(echo))
	for i, p := range set {
		b.WriteString("\n")
		fmt.Fprintf(&b, "📋 Patient #%d\n", i+1)
		fmt.Fprintf(&b, "   👤 %s %s\n", labelName, p.Name)
		fmt.Fprintf(&b, "   🆔 %s %s\n", labelID, p.ID)
		fmt.Fprintf(&b, "   🎂 %s %d\n", labelAge, p.Age)
		fmt.Fprintf(&b, "   🏥 %s %s\n", labelDiagnosis, p.Diagnosis)
		fmt.Fprintf(&b, "   💊 %s %s\n", labelMedications, renderList(p.Medications))
		fmt.Fprintf(&b, "   ⚠️ %s %s\n", labelAllergies, renderList(p.Allergies))
		fmt.Fprintf(&b, "   📅 %s %s\n", labelLastUpdated, p.LastUpdated)
		fmt.Fprintf(&b, "   🏢 %s %s\n", labelDepartment, titleCase(p.Department))
		fmt.Fprintf(&b, "   📊 %s %s\n", labelStatus, titleCase(p.Status))
		fmt.Fprintf(&b, "   📆 %s %s\n", labelAdmitted, p.Admitted)
	}
	return b.String()
}

func noResults(echo RequestEcho) string {
	return "No patients found matching the specified criteria." + echoSuffix(echo)
}

func echoSuffix(echo RequestEcho) string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(echo.NameFilter) != "" {
		parts = append(parts, fmt.Sprintf("name contains %q", echo.NameFilter))
	}
	if echo.Limit != nil {
		parts = append(parts, fmt.Sprintf("limit %d", *echo.Limit))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func renderList(items []string) string {
	if len(items) == 0 {
		return NoneReported
	}
	return strings.Join(items, ", ")
}

// titleCase uppercases the first letter of each word; upstream departments
// and statuses typically arrive lowercased.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		if len(runes) > 0 && runes[0] >= 'a' && runes[0] <= 'z' {
			runes[0] = runes[0] - 'a' + 'A'
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// RenderError maps a hard failure onto a stable, user-readable message. Raw
// failure detail never leaks into the reply; the transport logs it instead.
func RenderError(cause error) string {
	var statusErr *model.UpstreamStatusError
	switch {
	case errors.As(cause, &statusErr):
		return fmt.Sprintf("The patient directory rejected the request (status %d). Please try again later.", statusErr.StatusCode)
	case errors.Is(cause, model.ErrMalformedResponse):
		return "The patient directory returned a response I couldn't interpret. Please try again later."
	case errors.Is(cause, model.ErrUpstreamUnreachable):
		return "I couldn't reach the patient directory. Please check the connection and try again."
	default:
		return "Something went wrong while handling your request. Please try again."
	}
}

// ToolInfo is one entry in the tool catalog rendering.
type ToolInfo struct {
	Name        string
	Description string
}

// RenderToolCatalog lists the available tools in registry order.
func RenderToolCatalog(tools []ToolInfo) string {
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "  - %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

// RenderHelp describes what the assistant can do in the chat surface.
func RenderHelp() string {
	return strings.Join([]string{
		"I can help you look up patients in the directory.",
		"",
		"Try one of these:",
		`  - "show patients" - list patients`,
		`  - "find patients named Smith" - filter by name`,
		`  - "show 5 patients" - limit the result count`,
		`  - "list tools" - see the available tools`,
		"",
		"Patient records include name, age, diagnosis, medications, allergies and when they were last updated.",
	}, "\n")
}

// Structured builds the machine-readable companion payload for a rendered
// set, suitable for a tool result's structuredContent.
func Structured(set model.PatientSet, echo RequestEcho) map[string]interface{} {
	patients := make([]map[string]interface{}, 0, len(set))
	for _, p := range set {
		patients = append(patients, map[string]interface{}{
			"id":           p.ID,
			"name":         p.Name,
			"age":          p.Age,
			"diagnosis":    p.Diagnosis,
			"medications":  append([]string(nil), p.Medications...),
			"allergies":    append([]string(nil), p.Allergies...),
			"last_updated": p.LastUpdated,
			"department":   p.Department,
			"status":       p.Status,
			"admitted":     p.Admitted,
		})
	}
	out := map[string]interface{}{
		"count":    len(set),
		"patients": patients,
	}
	if strings.TrimSpace(echo.NameFilter) != "" {
		out["name_filter"] = echo.NameFilter
	}
	if echo.Limit != nil {
		out["limit"] = *echo.Limit
	}
	return out
}
