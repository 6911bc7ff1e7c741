package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/agent"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/changes"
	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/apierr"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/dbctx"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/redislock"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// memDocs is an in-memory DocumentRepo.
type memDocs struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*types.Document
}

func newMemDocs(docs ...*types.Document) *memDocs {
	m := &memDocs{docs: map[uuid.UUID]*types.Document{}}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocs) Create(dbc dbctx.Context, rows []*types.Document) ([]*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range rows {
		m.docs[d.ID] = d
	}
	return rows, nil
}

func (m *memDocs) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Document
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) UpdateText(dbc dbctx.Context, id uuid.UUID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	d.Text = text
	return nil
}

func (m *memDocs) IsOwner(dbc dbctx.Context, documentID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	return ok && d.UserID == userID, nil
}

type oneShotReasoner struct {
	decision agent.StepDecision
}

func (r oneShotReasoner) NextStep(ctx context.Context, st *agent.SessionState) (agent.StepDecision, error) {
	return r.decision, nil
}

type emptyRetriever struct{}

func (emptyRetriever) Search(ctx context.Context, documentID, userID uuid.UUID, queryText string, topK int) ([]types.BlockSearchResult, error) {
	return nil, nil
}

func (emptyRetriever) SearchTables(ctx context.Context, documentID, userID uuid.UUID) ([]types.BlockSearchResult, error) {
	return nil, nil
}

// busyLocker always reports the session as held.
type busyLocker struct{}

func (busyLocker) Acquire(context.Context, uuid.UUID, time.Duration) (func(), bool, error) {
	return nil, false, nil
}

func (busyLocker) Close() error { return nil }

func newService(t *testing.T, docs *memDocs, reasoner agent.Reasoner, lock redislock.Locker) *MutationService {
	t.Helper()
	log := testLogger()
	orch := agent.NewOrchestrator(log, reasoner, agent.NewToolbox(emptyRetriever{}), nil, agent.Config{
		MaxIterations: 4,
		StepTimeout:   time.Second,
		ToolTimeout:   time.Second,
		RetryBackoff:  time.Millisecond,
	})
	return NewMutationService(log, orch, docs, lock)
}

func TestMutate_AnnotatesDocumentWithProposals(t *testing.T) {
	owner := uuid.New()
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: "Line1\nLine2\n"}
	docs := newMemDocs(doc)

	svc := newService(t, docs, oneShotReasoner{decision: agent.StepDecision{
		Description:  "insert greeting",
		Done:         true,
		FinalMessage: "added a line",
		Changes: []types.DocumentEntityChange{{
			ChangeType: types.ChangeTypeInsert,
			EntityType: "paragraph",
			StartLine:  1,
			Content:    "NewLine",
		}},
	}}, redislock.NoopLocker{})

	out, err := svc.Mutate(context.Background(), MutateInput{
		DocumentID:  doc.ID,
		UserID:      owner,
		UserMessage: "add a line",
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if !out.Response.IsComplete {
		t.Fatalf("expected a complete response")
	}
	if !strings.Contains(out.AnnotatedText, "NewLine") || !strings.Contains(out.AnnotatedText, "[AI:INSERT:") {
		t.Fatalf("proposals not embedded: %q", out.AnnotatedText)
	}
	if doc.Text != "Line1\nLine2\n" {
		t.Fatalf("Mutate must not persist annotated text, document is now %q", doc.Text)
	}
}

func TestMutate_NoProposalsNoAnnotatedText(t *testing.T) {
	owner := uuid.New()
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: "x\n"}
	svc := newService(t, newMemDocs(doc), oneShotReasoner{decision: agent.StepDecision{
		Description: "nothing to do", Done: true, FinalMessage: "all good",
	}}, redislock.NoopLocker{})

	out, err := svc.Mutate(context.Background(), MutateInput{DocumentID: doc.ID, UserID: owner, UserMessage: "check"})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if out.AnnotatedText != "" {
		t.Fatalf("expected no annotated text, got %q", out.AnnotatedText)
	}
}

func TestMutate_NonOwnerDeniedBeforeSessionRuns(t *testing.T) {
	owner := uuid.New()
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: "secret\n"}

	// A reasoner that proposes straight away, with no tool call, so nothing
	// downstream of the service would ever check access.
	svc := newService(t, newMemDocs(doc), oneShotReasoner{decision: agent.StepDecision{
		Description:  "edit",
		Done:         true,
		FinalMessage: "done",
		Changes: []types.DocumentEntityChange{{
			ChangeType: types.ChangeTypeInsert,
			EntityType: "paragraph",
			StartLine:  1,
			Content:    "injected",
		}},
	}}, redislock.NoopLocker{})

	out, err := svc.Mutate(context.Background(), MutateInput{
		DocumentID:  doc.ID,
		UserID:      uuid.New(),
		UserMessage: "rewrite this",
	})
	if !errors.Is(err, apierr.ErrAccessDenied) {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
	if out.AnnotatedText != "" || len(out.Response.Steps) != 0 {
		t.Fatalf("denied caller must not receive document content or steps: %+v", out)
	}
}

func TestMutate_BusySessionRejected(t *testing.T) {
	owner := uuid.New()
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: "x\n"}
	svc := newService(t, newMemDocs(doc), oneShotReasoner{}, busyLocker{})

	chatID := uuid.New()
	_, err := svc.Mutate(context.Background(), MutateInput{
		DocumentID: doc.ID, UserID: owner, ChatID: &chatID, UserMessage: "edit",
	})
	if !errors.Is(err, apierr.ErrSessionBusy) {
		t.Fatalf("expected SessionBusy, got %v", err)
	}
}

func TestResolve_PersistsAcceptedInsert(t *testing.T) {
	owner := uuid.New()
	annotated, err := changes.Encode("Line1\nLine2\n", []types.DocumentEntityChange{{
		ChangeID: "c1", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 1, Content: "NewLine",
	}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: annotated}
	docs := newMemDocs(doc)
	svc := newService(t, docs, oneShotReasoner{}, redislock.NoopLocker{})

	out, err := svc.Resolve(context.Background(), ResolveInput{
		DocumentID: doc.ID,
		UserID:     owner,
		ChangeIDs:  []string{"c1"},
		Decision:   changes.DecisionAccept,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "Line1\nNewLine\nLine2\n"
	if out.Text != want {
		t.Fatalf("unexpected resolved text %q", out.Text)
	}
	if doc.Text != want {
		t.Fatalf("resolved text not persisted, document is %q", doc.Text)
	}
}

func TestResolve_GroupAppliedAtomically(t *testing.T) {
	owner := uuid.New()
	annotated, err := changes.Encode("Intro\nOutro\n", []types.DocumentEntityChange{
		{ChangeID: "c1", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 1, Content: "first", GroupID: "g", Order: 0},
		{ChangeID: "c2", ChangeType: types.ChangeTypeInsert, EntityType: "paragraph", StartLine: 1, Content: "second", GroupID: "g", Order: 1},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: annotated}
	docs := newMemDocs(doc)
	svc := newService(t, docs, oneShotReasoner{}, redislock.NoopLocker{})

	if _, err := svc.Resolve(context.Background(), ResolveInput{
		DocumentID: doc.ID, UserID: owner, ChangeIDs: []string{"c1", "missing"}, Decision: changes.DecisionAccept,
	}); !errors.Is(err, apierr.ErrChangeNotFound) {
		t.Fatalf("expected ChangeNotFound, got %v", err)
	}
	if doc.Text != annotated {
		t.Fatalf("failed group resolve must not touch the document")
	}

	out, err := svc.Resolve(context.Background(), ResolveInput{
		DocumentID: doc.ID, UserID: owner, ChangeIDs: []string{"c1", "c2"}, Decision: changes.DecisionAccept,
	})
	if err != nil {
		t.Fatalf("Resolve group: %v", err)
	}
	if out.Text != "Intro\nfirst\nsecond\nOutro\n" {
		t.Fatalf("unexpected group result %q", out.Text)
	}
}

func TestResolve_NonOwnerDenied(t *testing.T) {
	owner := uuid.New()
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: "x\n"}
	svc := newService(t, newMemDocs(doc), oneShotReasoner{}, redislock.NoopLocker{})

	_, err := svc.Resolve(context.Background(), ResolveInput{
		DocumentID: doc.ID,
		UserID:     uuid.New(),
		ChangeIDs:  []string{"c1"},
		Decision:   changes.DecisionAccept,
	})
	if !errors.Is(err, apierr.ErrAccessDenied) {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

func TestResolve_RejectsUnknownDecision(t *testing.T) {
	owner := uuid.New()
	doc := &types.Document{ID: uuid.New(), UserID: owner, Title: "t", Text: "x\n"}
	svc := newService(t, newMemDocs(doc), oneShotReasoner{}, redislock.NoopLocker{})

	if _, err := svc.Resolve(context.Background(), ResolveInput{
		DocumentID: doc.ID, UserID: owner, ChangeIDs: []string{"c1"}, Decision: "maybe",
	}); err == nil {
		t.Fatalf("expected an error for an unknown decision")
	}
}
