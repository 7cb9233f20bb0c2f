// Package intent classifies free-text utterances into structured tool
// intents. Classification is a fixed, ordered rule table: deterministic,
// stateless per call, with Unknown as the total catch-all. Keep the rule
// order stable; behavior must be reproducible across releases.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"careline/internal/model"
)

var (
	greetingWords = map[string]bool{
		"hello": true, "hi": true, "hey": true, "greetings": true, "howdy": true,
	}
	greetingPhrases = []string{"good morning", "good afternoon", "good evening"}

	// Trailing tokens after a greeting that are not names.
	greetingStopWords = map[string]bool{
		"there": true, "everyone": true, "all": true, "folks": true, "team": true,
	}

	helpPhrases = []string{"what can you do", "how do i", "how does this work"}
	helpWords   = map[string]bool{"help": true, "commands": true}

	listToolsPhrases = []string{"list tools", "show tools", "available tools", "what tools", "list the tools"}

	// Any of these keywords marks a patient query. "allerg" covers both
	// "allergy" and "allergies".
	patientKeywords = []string{"patient", "diagnosis", "medication", "medicine", "allerg", "condition", "treatment", "prescription"}

	nameCueWords = map[string]bool{"named": true, "called": true}

	// Words that cannot be a patient name even when they follow a name cue.
	nameStopWords = map[string]bool{"is": true, "are": true, "the": true, "a": true, "an": true}

	quotedRe     = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	standaloneRe = regexp.MustCompile(`(^|\s)(\d+)(\s|$|[.,!?])`)
	bareNumberRe = regexp.MustCompile(`^\d+$`)
)

// Route classifies one utterance. recent is read-only conversation context,
// consulted only to interpret a bare numeric reply as a limit refinement of
// the previous patient query. First matching rule wins.
func Route(utterance string, recent []model.ConversationTurn) model.Intent {
	norm := strings.ToLower(strings.TrimSpace(utterance))

	if intent, ok := matchGreeting(norm, utterance); ok {
		return intent
	}
	if matchHelp(norm) {
		return model.Intent{Kind: model.IntentHelp}
	}
	if matchListTools(norm) {
		return model.Intent{Kind: model.IntentListTools}
	}
	if intent, ok := matchPatientQuery(norm, utterance); ok {
		return intent
	}
	if intent, ok := matchLimitRefinement(norm, recent); ok {
		return intent
	}
	return model.Intent{Kind: model.IntentUnknown, Utterance: utterance}
}

func matchGreeting(norm, original string) (model.Intent, bool) {
	for _, phrase := range greetingPhrases {
		if strings.HasPrefix(norm, phrase) {
			rest := strings.TrimSpace(norm[len(phrase):])
			return model.Intent{Kind: model.IntentGreeting, GreetName: greetName(rest, original)}, true
		}
	}
	tokens := strings.Fields(norm)
	if len(tokens) == 0 || !greetingWords[strings.Trim(tokens[0], ".,!?")] {
		return model.Intent{}, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(norm, tokens[0]))
	return model.Intent{Kind: model.IntentGreeting, GreetName: greetName(rest, original)}, true
}

// greetName pulls a single trailing name token out of a greeting, preserving
// the original casing. "hello there" carries no name; "hi Maria" does.
func greetName(rest, original string) string {
	tokens := strings.Fields(rest)
	if len(tokens) != 1 {
		return ""
	}
	token := strings.Trim(tokens[0], ".,!?")
	if token == "" || greetingStopWords[token] || !alphabetic(token) {
		return ""
	}
	// Recover original casing: the candidate is the last token of the input.
	origTokens := strings.Fields(original)
	return strings.Trim(origTokens[len(origTokens)-1], ".,!?")
}

func matchHelp(norm string) bool {
	for _, phrase := range helpPhrases {
		if strings.Contains(norm, phrase) {
			return true
		}
	}
	for _, token := range strings.Fields(norm) {
		if helpWords[strings.Trim(token, ".,!?")] {
			return true
		}
	}
	return false
}

func matchListTools(norm string) bool {
	for _, phrase := range listToolsPhrases {
		if strings.Contains(norm, phrase) {
			return true
		}
	}
	return false
}

func matchPatientQuery(norm, original string) (model.Intent, bool) {
	matched := false
	for _, kw := range patientKeywords {
		if strings.Contains(norm, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return model.Intent{}, false
	}

	intent := model.Intent{Kind: model.IntentGetPatients}
	if name, ok := extractName(original); ok {
		intent.NameFilter = &name
	}
	if limit, ok := extractLimit(norm); ok {
		intent.Limit = &limit
	}
	return intent, true
}

// extractName prefers a quoted token, then the token following "named" or
// "called". Casing from the original utterance is preserved.
func extractName(original string) (string, bool) {
	if m := quotedRe.FindStringSubmatch(original); m != nil {
		if m[1] != "" {
			return m[1], true
		}
		return m[2], true
	}
	tokens := strings.Fields(original)
	for i, token := range tokens {
		if !nameCueWords[strings.ToLower(strings.Trim(token, ".,!?"))] {
			continue
		}
		if i+1 >= len(tokens) {
			break
		}
		candidate := strings.Trim(tokens[i+1], ".,!?")
		if candidate == "" || nameStopWords[strings.ToLower(candidate)] {
			break
		}
		return candidate, true
	}
	return "", false
}

// extractLimit finds the first standalone integer token.
func extractLimit(norm string) (int, bool) {
	m := standaloneRe.FindStringSubmatch(norm)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return n, true
}

// matchLimitRefinement interprets a bare number as "same query, new limit"
// when the most recent user turn routed to a patient query. The prior turn is
// re-routed statelessly to recover its arguments.
func matchLimitRefinement(norm string, recent []model.ConversationTurn) (model.Intent, bool) {
	if !bareNumberRe.MatchString(norm) {
		return model.Intent{}, false
	}
	n, err := strconv.Atoi(norm)
	if err != nil {
		return model.Intent{}, false
	}
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Role != model.RoleUser {
			continue
		}
		prior := Route(recent[i].Text, nil)
		if prior.Kind != model.IntentGetPatients {
			return model.Intent{}, false
		}
		prior.Limit = &n
		return prior, true
	}
	return model.Intent{}, false
}

func alphabetic(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}
