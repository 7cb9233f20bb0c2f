package chat

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"careline/internal/audit"
	"careline/internal/model"
	"careline/internal/normalize"
	"careline/internal/session"
	"careline/internal/upstream"
)

type fakeFetcher struct {
	payload string
	err     error
	lastQ   upstream.Query
}

func (f *fakeFetcher) FetchPatients(_ context.Context, q upstream.Query) (json.RawMessage, error) {
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.payload), nil
}

const wardPayload = `{"data": [
	{"patient_id": "p1", "full_name": "John Smith", "age": 45, "primary_diagnosis": "Hypertension",
	 "current_medications": ["Lisinopril"], "known_allergies": [], "department": "cardiology",
	 "patient_status": "stable", "admission_date": "2024-01-10", "last_updated": "2024-01-15"},
	{"patient_id": "p2", "full_name": "Jane Smith", "age": 38, "primary_diagnosis": "Asthma",
	 "current_medications": ["Albuterol"], "known_allergies": ["Penicillin"], "department": "pulmonology",
	 "patient_status": "improving", "admission_date": "2024-02-01", "last_updated": "2024-02-03"},
	{"patient_id": "p3", "full_name": "Alice Wong", "age": 61, "primary_diagnosis": "Diabetes",
	 "current_medications": [], "known_allergies": [], "department": "endocrinology",
	 "patient_status": "stable", "admission_date": "2024-01-20", "last_updated": "2024-01-25"}
]}`

func newTestService(fetcher Fetcher) *Service {
	return NewService(fetcher, session.NewStore(0), nil, normalize.DefaultAliasTable(), audit.NopLog{}, zerolog.Nop())
}

func TestHandleGreeting(t *testing.T) {
	svc := newTestService(&fakeFetcher{payload: `[]`})
	reply, err := svc.Handle(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(reply, "Careline") {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandlePatientQuery(t *testing.T) {
	fetcher := &fakeFetcher{payload: wardPayload}
	svc := newTestService(fetcher)
	reply, err := svc.Handle(context.Background(), "s1", "show me patients named Smith")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(reply, "Found 2 patient(s)") {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(reply, "John Smith") || !strings.Contains(reply, "Jane Smith") {
		t.Errorf("reply missing patients: %q", reply)
	}
	if strings.Contains(reply, "Alice Wong") {
		t.Errorf("filter leaked: %q", reply)
	}
	if fetcher.lastQ.Name != "Smith" {
		t.Errorf("upstream name = %q", fetcher.lastQ.Name)
	}
}

func TestHandleLimitRefinement(t *testing.T) {
	fetcher := &fakeFetcher{payload: wardPayload}
	svc := newTestService(fetcher)
	ctx := context.Background()

	if _, err := svc.Handle(ctx, "s1", "show me patients named Smith"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	reply, err := svc.Handle(ctx, "s1", "1")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(reply, "Found 1 patient(s)") {
		t.Errorf("refined reply = %q", reply)
	}
	if fetcher.lastQ.Name != "Smith" {
		t.Errorf("refinement dropped name filter, got %q", fetcher.lastQ.Name)
	}
	if fetcher.lastQ.Limit == nil || *fetcher.lastQ.Limit != 1 {
		t.Errorf("limit = %v", fetcher.lastQ.Limit)
	}
}

func TestHandleUpstreamErrorRendered(t *testing.T) {
	svc := newTestService(&fakeFetcher{err: &model.UpstreamStatusError{StatusCode: 503, Body: "down"}})
	reply, err := svc.Handle(context.Background(), "s1", "list all patients")
	if err != nil {
		t.Fatalf("Handle should render errors, got %v", err)
	}
	if !strings.Contains(reply, "503") {
		t.Errorf("reply = %q, want status code surfaced", reply)
	}
}

func TestHandleUnknownWithoutLLM(t *testing.T) {
	svc := newTestService(&fakeFetcher{payload: `[]`})
	reply, err := svc.Handle(context.Background(), "s1", "what's the weather on mars")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply != unknownFallback {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleEmptyMessage(t *testing.T) {
	svc := newTestService(&fakeFetcher{payload: `[]`})
	if _, err := svc.Handle(context.Background(), "s1", "   "); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestHandleRecordsHistory(t *testing.T) {
	sessions := session.NewStore(0)
	svc := NewService(&fakeFetcher{payload: `[]`}, sessions, nil, normalize.DefaultAliasTable(), audit.NopLog{}, zerolog.Nop())
	if _, err := svc.Handle(context.Background(), "s1", "hello"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	turns := sessions.History("s1")
	if len(turns) != 2 {
		t.Fatalf("history = %d turns, want 2", len(turns))
	}
	if turns[0].Role != model.RoleUser || turns[1].Role != model.RoleAssistant {
		t.Errorf("roles = %v, %v", turns[0].Role, turns[1].Role)
	}
}

type fakeLLM struct {
	reply string
	got   string
}

func (f *fakeLLM) Reply(_ context.Context, _ []model.ConversationTurn, utterance string) (string, error) {
	f.got = utterance
	return f.reply, nil
}

func TestHandleUnknownWithLLM(t *testing.T) {
	llmStub := &fakeLLM{reply: "I can only help with patient lookups."}
	svc := NewService(&fakeFetcher{payload: `[]`}, session.NewStore(0), llmStub, normalize.DefaultAliasTable(), audit.NopLog{}, zerolog.Nop())
	reply, err := svc.Handle(context.Background(), "s1", "tell me a joke")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply != llmStub.reply {
		t.Errorf("reply = %q", reply)
	}
	if llmStub.got != "tell me a joke" {
		t.Errorf("utterance passed to llm = %q", llmStub.got)
	}
}
