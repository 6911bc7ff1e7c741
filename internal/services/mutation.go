package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/agent"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/changes"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/data/repos"
	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/apierr"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/dbctx"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/envutil"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/logger"
	"github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/platform/redislock"
)

// MutationService is the outer surface of the editing flow: it serializes
// sessions per chat, runs the agent, and turns the agent's proposals into
// marked-up document text that the reconcile flow can later settle.
type MutationService struct {
	log  *logger.Logger
	orch *agent.Orchestrator
	docs repos.DocumentRepo
	lock redislock.Locker

	lockTTL time.Duration
}

func NewMutationService(log *logger.Logger, orch *agent.Orchestrator, docs repos.DocumentRepo, lock redislock.Locker) *MutationService {
	return &MutationService{
		log:     log.With("service", "MutationService"),
		orch:    orch,
		docs:    docs,
		lock:    lock,
		lockTTL: envutil.Seconds("AGENT_SESSION_LOCK_TTL_SECONDS", 5*time.Minute),
	}
}

type MutateInput struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	ChatID     *uuid.UUID

	UserMessage string
	Mode        string

	StartLine *int
	EndLine   *int
}

type MutateOutput struct {
	Response      types.AgentResponse `json:"response"`
	AnnotatedText string              `json:"annotated_text,omitempty"`
}

// Mutate runs one full agent session for a document and returns the agent's
// response plus the document text with every proposal embedded as pending
// markers. The database copy is not touched; persisting marked-up text is
// the caller's call once it has shown the proposals to the user.
func (s *MutationService) Mutate(ctx context.Context, in MutateInput) (MutateOutput, error) {
	// Checked up front: a session may propose changes without ever touching a
	// tool, so the per-tool access checks alone do not cover the run.
	owner, err := s.docs.IsOwner(dbctx.Context{Ctx: ctx}, in.DocumentID, in.UserID)
	if err != nil {
		return MutateOutput{}, fmt.Errorf("check document owner: %w", err)
	}
	if !owner {
		return MutateOutput{}, apierr.AccessDenied(fmt.Errorf("user %s does not own document %s", in.UserID, in.DocumentID))
	}

	chatID := uuid.Nil
	if in.ChatID != nil {
		chatID = *in.ChatID
	}
	release, ok, err := s.lock.Acquire(ctx, chatID, s.lockTTL)
	if err != nil {
		return MutateOutput{}, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return MutateOutput{}, apierr.SessionBusy(fmt.Errorf("chat %s already has a running session", chatID))
	}
	defer release()

	resp, err := s.orch.Run(ctx, agent.RunInput{
		DocumentID:  in.DocumentID,
		UserID:      in.UserID,
		ChatID:      in.ChatID,
		UserMessage: in.UserMessage,
		Mode:        in.Mode,
		StartLine:   in.StartLine,
		EndLine:     in.EndLine,
	})
	if err != nil {
		return MutateOutput{Response: resp}, err
	}

	out := MutateOutput{Response: resp}
	proposals := resp.Changes()
	if len(proposals) == 0 {
		return out, nil
	}

	doc, err := s.loadDocument(ctx, in.DocumentID)
	if err != nil {
		return out, err
	}
	annotated, err := changes.Encode(doc.Text, proposals)
	if err != nil {
		s.log.Error("Failed to encode proposals", "document_id", in.DocumentID, "error", err)
		return out, err
	}
	out.AnnotatedText = annotated
	return out, nil
}

type ResolveInput struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID

	// One id resolves a single change; several ids resolve a chunk group
	// atomically.
	ChangeIDs []string
	Decision  changes.Decision
}

type ResolveOutput struct {
	Text string `json:"text"`
}

// Resolve settles pending changes in the stored document text and persists
// the result.
func (s *MutationService) Resolve(ctx context.Context, in ResolveInput) (ResolveOutput, error) {
	if len(in.ChangeIDs) == 0 {
		return ResolveOutput{}, fmt.Errorf("no change ids given")
	}
	if in.Decision != changes.DecisionAccept && in.Decision != changes.DecisionReject {
		return ResolveOutput{}, fmt.Errorf("unknown decision %q", in.Decision)
	}

	owner, err := s.docs.IsOwner(dbctx.Context{Ctx: ctx}, in.DocumentID, in.UserID)
	if err != nil {
		return ResolveOutput{}, fmt.Errorf("check document owner: %w", err)
	}
	if !owner {
		return ResolveOutput{}, apierr.AccessDenied(fmt.Errorf("user %s does not own document %s", in.UserID, in.DocumentID))
	}

	doc, err := s.loadDocument(ctx, in.DocumentID)
	if err != nil {
		return ResolveOutput{}, err
	}

	var next string
	if len(in.ChangeIDs) == 1 {
		next, err = changes.Resolve(doc.Text, in.ChangeIDs[0], in.Decision)
	} else {
		next, err = changes.ResolveGroup(doc.Text, in.ChangeIDs, in.Decision)
	}
	if err != nil {
		return ResolveOutput{}, err
	}

	if err := s.docs.UpdateText(dbctx.Context{Ctx: ctx}, in.DocumentID, next); err != nil {
		return ResolveOutput{}, fmt.Errorf("persist resolved text: %w", err)
	}
	s.log.Info("Resolved pending changes",
		"document_id", in.DocumentID,
		"decision", in.Decision,
		"changes", len(in.ChangeIDs))
	return ResolveOutput{Text: next}, nil
}

func (s *MutationService) loadDocument(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	docs, err := s.docs.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if len(docs) == 0 {
		return nil, apierr.AccessDenied(fmt.Errorf("document %s not found", id))
	}
	return docs[0], nil
}
