// Package chat turns free-text utterances into patient-directory answers.
// The deterministic intent router runs first; only utterances it cannot
// classify fall through to the optional LLM.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"careline/internal/audit"
	"careline/internal/intent"
	"careline/internal/llm"
	"careline/internal/model"
	"careline/internal/normalize"
	"careline/internal/present"
	"careline/internal/protocol"
	"careline/internal/session"
	"careline/internal/upstream"
)

const unknownFallback = "I'm not sure what you're asking. I can look up patient records, for example: \"show patients named Smith\". Say \"help\" for the full list of things I understand."

// Fetcher retrieves the raw upstream payload for a patient query.
type Fetcher interface {
	FetchPatients(ctx context.Context, q upstream.Query) (json.RawMessage, error)
}

type Service struct {
	fetcher  Fetcher
	sessions *session.Store
	llm      llm.Client
	aliases  normalize.AliasTable
	audit    audit.Log
	log      zerolog.Logger
}

func NewService(fetcher Fetcher, sessions *session.Store, llmClient llm.Client, aliases normalize.AliasTable, auditLog audit.Log, logger zerolog.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.NopLog{}
	}
	return &Service{
		fetcher:  fetcher,
		sessions: sessions,
		llm:      llmClient,
		aliases:  aliases,
		audit:    auditLog,
		log:      logger.With().Str("component", "chat").Logger(),
	}
}

// Lookup fetches, normalizes and filters patient records. It backs both the
// chat surface and the MCP tools.
func (s *Service) Lookup(ctx context.Context, name string, limit *int) (model.PatientSet, error) {
	envelope, err := s.fetcher.FetchPatients(ctx, upstream.Query{Name: name, Limit: limit})
	if err != nil {
		return nil, err
	}
	return normalize.Normalize(envelope, s.aliases, name, limit)
}

// Handle processes one utterance for a session and returns the reply text.
// Errors the user can act on come back as rendered reply text, not as a Go
// error; the error return is reserved for request-level problems such as an
// empty message.
func (s *Service) Handle(ctx context.Context, sessionID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	history := s.sessions.History(sessionID)
	routed := intent.Route(message, history)
	s.sessions.Append(sessionID, model.ConversationTurn{
		Role:      model.RoleUser,
		Text:      message,
		Timestamp: time.Now(),
	})

	reply := s.dispatch(ctx, sessionID, history, routed)

	s.sessions.Append(sessionID, model.ConversationTurn{
		Role:      model.RoleAssistant,
		Text:      reply,
		Timestamp: time.Now(),
	})
	return reply, nil
}

// ClearSession drops a session's conversation history.
func (s *Service) ClearSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

func (s *Service) dispatch(ctx context.Context, sessionID string, history []model.ConversationTurn, routed model.Intent) string {
	switch routed.Kind {
	case model.IntentGreeting:
		return greeting(routed.GreetName)
	case model.IntentHelp:
		return present.RenderHelp()
	case model.IntentListTools:
		return present.RenderToolCatalog(Tools())
	case model.IntentGetPatients:
		return s.patientReply(ctx, sessionID, routed)
	default:
		return s.unknownReply(ctx, history, routed.Utterance)
	}
}

func (s *Service) patientReply(ctx context.Context, sessionID string, routed model.Intent) string {
	name := ""
	if routed.NameFilter != nil {
		name = *routed.NameFilter
	}

	set, err := s.Lookup(ctx, name, routed.Limit)

	entry := audit.Entry{
		SessionID:  sessionID,
		Tool:       protocol.ToolNameGetPatientList,
		NameFilter: name,
		ResultRows: len(set),
	}
	if routed.Limit != nil {
		entry.Limit = sql.NullInt64{Int64: int64(*routed.Limit), Valid: true}
	}
	if err != nil {
		entry.ErrorKind = auditErrorKind(err)
	}
	if auditErr := s.audit.Record(ctx, entry); auditErr != nil {
		s.log.Warn().Err(auditErr).Msg("audit record failed")
	}

	if err != nil {
		s.log.Error().Err(err).Str("name", name).Msg("patient lookup failed")
		return present.RenderError(err)
	}
	return present.Render(set, present.RequestEcho{NameFilter: name, Limit: routed.Limit})
}

func (s *Service) unknownReply(ctx context.Context, history []model.ConversationTurn, utterance string) string {
	if s.llm == nil {
		return unknownFallback
	}
	reply, err := s.llm.Reply(ctx, history, utterance)
	if err != nil {
		s.log.Warn().Err(err).Msg("llm fallback failed")
		return unknownFallback
	}
	return reply
}

// Tools returns the catalog the chat surface advertises. It mirrors the MCP
// tool registry.
func Tools() []present.ToolInfo {
	return []present.ToolInfo{
		{
			Name:        protocol.ToolNameGetPatientList,
			Description: "Fetch patient records, optionally filtered by name and capped by limit.",
		},
		{
			Name:        protocol.ToolNameListTools,
			Description: "Describe the tools this server offers.",
		},
	}
}

func greeting(name string) string {
	if name != "" {
		return fmt.Sprintf("Hello, %s! I'm Careline, your patient directory assistant. Ask me to look up patients by name, or say \"help\" to see what I can do.", name)
	}
	return "Hello! I'm Careline, your patient directory assistant. Ask me to look up patients by name, or say \"help\" to see what I can do."
}

func auditErrorKind(err error) string {
	var statusErr *model.UpstreamStatusError
	switch {
	case errors.As(err, &statusErr):
		return "upstream_status"
	case errors.Is(err, model.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, model.ErrUpstreamUnreachable):
		return "upstream_unreachable"
	default:
		return "internal"
	}
}
