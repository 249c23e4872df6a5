// Package discovery implements the guided discovery conversation: a
// phase-sequenced dialogue that refines a raw startup idea and synthesizes
// it into a structured research brief.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dstarenko/ideascope/internal/convlog"
	"github.com/dstarenko/ideascope/internal/domain"
	"github.com/dstarenko/ideascope/internal/llm"
	"github.com/dstarenko/ideascope/internal/prompts"
	"github.com/dstarenko/ideascope/internal/store"
	"github.com/dstarenko/ideascope/internal/synthesis"
	"github.com/google/uuid"
)

// TurnOptions carries optional per-call model overrides.
type TurnOptions struct {
	Model       string
	Temperature *float64
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	ResponseText string                  `json:"response"`
	Phase        domain.Phase            `json:"phase"`
	IsComplete   bool                    `json:"is_complete"`
	Synthesis    *domain.SynthesisOutput `json:"synthesis,omitempty"`
}

// Summary is the completed-session view consumed by downstream research.
type Summary struct {
	TLDR         *domain.SynthesisSummary `json:"tldr"`
	FullPrompt   *domain.ResearchPrompt   `json:"full_prompt"`
	FounderFit   *domain.FounderFit       `json:"founder_fit"`
	IdeaID       string                   `json:"idea_id,omitempty"`
	MessageCount int                      `json:"message_count"`
}

// Service is the conversation orchestrator and session lifecycle manager.
type Service struct {
	repo    store.Repository
	model   llm.Client
	prompts *prompts.Library
	locks   *sessionLocks
	log     convlog.Logger
	now     func() time.Time
	newID   func() string
}

// NewService creates the discovery service.
func NewService(repo store.Repository, model llm.Client, lib *prompts.Library, log convlog.Logger) *Service {
	if log == nil {
		log = convlog.Noop{}
	}
	return &Service{
		repo:    repo,
		model:   model,
		prompts: lib,
		locks:   newSessionLocks(),
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Start creates a new discovery session seeded with the welcome message.
// A non-empty seedIdea is recorded as the founder's opening turn so the
// model sees it on the first real exchange; no model call happens here.
func (s *Service) Start(ctx context.Context, ownerID, ideaID, seedIdea string) (*domain.DiscoverySession, error) {
	now := s.now()
	session := &domain.DiscoverySession{
		ID:           s.newID(),
		IdeaID:       ideaID,
		OwnerID:      ownerID,
		CurrentPhase: domain.PhaseVision,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	session.Append(domain.RoleAssistant, s.prompts.Welcome(), now)
	if seedIdea = strings.TrimSpace(seedIdea); seedIdea != "" {
		session.Append(domain.RoleUser, seedIdea, now)
	}

	if err := s.repo.CreateDiscoverySession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	slog.Info("Discovery session started",
		"session_id", session.ID, "owner_id", ownerID, "idea_id", ideaID)
	return session, nil
}

// Get returns the session, scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID, sessionID string) (*domain.DiscoverySession, error) {
	return s.load(ctx, ownerID, sessionID)
}

// List returns the owner's sessions, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit int) ([]*domain.DiscoverySession, error) {
	sessions, err := s.repo.ListDiscoverySessionsByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// SendMessage runs one conversation turn: append the user's message, ask the
// model for the assistant reply under the current phase prompt, decide the
// next phase, and persist. The turn is atomic — a model or store failure
// leaves the persisted session exactly as it was.
func (s *Service) SendMessage(ctx context.Context, ownerID, sessionID, text string, opts *TurnOptions) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	release := s.locks.acquire(sessionID)
	defer release()

	session, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, ErrSessionNotActive
	}

	phase := session.CurrentPhase
	session.Append(domain.RoleUser, text, s.now())

	reply, err := s.model.Complete(ctx, llm.CompletionRequest{
		System:         s.prompts.System() + "\n\n" + s.prompts.ForPhase(phase),
		Messages:       session.Messages,
		WantStructured: phase == domain.PhaseSynthesis,
		Model:          optModel(opts),
		Temperature:    optTemperature(opts),
	})
	if err != nil {
		// Nothing has been persisted: the user's message only exists on the
		// in-memory copy, so the stored transcript is untouched.
		return nil, fmt.Errorf("complete turn: %w", err)
	}

	session.Append(domain.RoleAssistant, reply, s.now())

	var synth *domain.SynthesisOutput
	if phase == domain.PhaseSynthesis {
		out, parseErr := synthesis.Parse(reply)
		if parseErr != nil {
			// Recoverable: the malformed reply stays visible in the
			// transcript and the phase does not advance, inviting the model
			// to retry on the next turn.
			slog.Info("Synthesis output rejected, staying in synthesis phase",
				"session_id", sessionID, "error", parseErr)
		} else {
			synth = out
			s.applySynthesis(session, out)
		}
	} else {
		session.CurrentPhase = Detect(s.prompts, phase, reply)
	}

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	s.logTurn(session, phase, text, reply)

	if session.CurrentPhase != phase {
		slog.Info("Discovery phase advanced",
			"session_id", sessionID, "from", phase, "to", session.CurrentPhase)
	}

	return &TurnResult{
		ResponseText: reply,
		Phase:        session.CurrentPhase,
		IsComplete:   session.CurrentPhase == domain.PhaseComplete,
		Synthesis:    synth,
	}, nil
}

// Skip terminates the session without a synthesis. Re-skipping an already
// skipped session is a no-op success so double-submits don't surface
// spurious errors.
func (s *Service) Skip(ctx context.Context, ownerID, sessionID string) (*domain.DiscoverySession, error) {
	release := s.locks.acquire(sessionID)
	defer release()

	session, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.StatusSkipped {
		return session, nil
	}
	if session.Status == domain.StatusCompleted {
		return nil, ErrSessionNotActive
	}

	now := s.now()
	session.Status = domain.StatusSkipped
	session.CompletedAt = &now

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("Discovery session skipped", "session_id", sessionID, "phase", session.CurrentPhase)
	return session, nil
}

// ForceAdvance sets the phase directly, bypassing the detector. It never
// triggers synthesis by itself: synthesis only happens via SendMessage or
// ForceSynthesis while the session sits in the synthesis phase. Complete is
// not a valid target for the same reason; completion always comes from a
// successful synthesis.
func (s *Service) ForceAdvance(ctx context.Context, ownerID, sessionID string, target domain.Phase) (*domain.DiscoverySession, error) {
	if !target.Valid() || target == domain.PhaseComplete {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, string(target))
	}

	release := s.locks.acquire(sessionID)
	defer release()

	session, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, ErrSessionNotActive
	}

	from := session.CurrentPhase
	session.CurrentPhase = target

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("Discovery phase forced", "session_id", sessionID, "from", from, "to", target)
	return session, nil
}

// ResetToVision rewinds an active session to the first phase so the founder
// can rework the idea. The transcript is preserved.
func (s *Service) ResetToVision(ctx context.Context, ownerID, sessionID string) (*domain.DiscoverySession, error) {
	return s.ForceAdvance(ctx, ownerID, sessionID, domain.PhaseVision)
}

// ForceSynthesis bypasses turn-by-turn phasing: it sends the transcript with
// a one-shot synthesis instruction, and on a valid parse persists the same
// completion state a normal final turn would. A parse failure is fatal to
// this call and persists nothing.
func (s *Service) ForceSynthesis(ctx context.Context, ownerID, sessionID string, opts *TurnOptions) (*domain.SynthesisOutput, error) {
	release := s.locks.acquire(sessionID)
	defer release()

	session, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, ErrSessionNotActive
	}

	reply, err := s.model.Complete(ctx, llm.CompletionRequest{
		System:         s.prompts.System() + "\n\n" + s.prompts.ForceSynthesis(),
		Messages:       session.Messages,
		WantStructured: true,
		Model:          optModel(opts),
		Temperature:    optTemperature(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("complete synthesis: %w", err)
	}

	out, parseErr := synthesis.Parse(reply)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, parseErr)
	}

	session.Append(domain.RoleAssistant, reply, s.now())
	s.applySynthesis(session, out)

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("Discovery session force-synthesized", "session_id", sessionID)
	return out, nil
}

// Summary returns the completed-session view, or nil while the session has
// not completed.
func (s *Service) Summary(ctx context.Context, ownerID, sessionID string) (*Summary, error) {
	session, err := s.load(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusCompleted {
		return nil, nil
	}
	return &Summary{
		TLDR:         session.TLDR,
		FullPrompt:   session.RefinedPrompt,
		FounderFit:   session.FounderFit,
		IdeaID:       session.IdeaID,
		MessageCount: len(session.Messages),
	}, nil
}

// load fetches the session and scopes it to the owner. A session belonging
// to someone else is indistinguishable from a missing one.
func (s *Service) load(ctx context.Context, ownerID, sessionID string) (*domain.DiscoverySession, error) {
	session, err := s.repo.GetDiscoverySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil || session.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) persist(ctx context.Context, session *domain.DiscoverySession) error {
	err := s.repo.UpdateDiscoverySession(ctx, session)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionConflict):
		return fmt.Errorf("%w: session %s", ErrConflict, session.ID)
	case errors.Is(err, store.ErrNotFound):
		return ErrSessionNotFound
	default:
		return fmt.Errorf("update session: %w", err)
	}
}

func (s *Service) applySynthesis(session *domain.DiscoverySession, out *domain.SynthesisOutput) {
	now := s.now()
	tldr := out.TLDR
	fullPrompt := out.FullPrompt
	founderFit := out.FounderFit
	session.TLDR = &tldr
	session.RefinedPrompt = &fullPrompt
	session.FounderFit = &founderFit
	session.CurrentPhase = domain.PhaseComplete
	session.Status = domain.StatusCompleted
	session.CompletedAt = &now
}

func (s *Service) logTurn(session *domain.DiscoverySession, phase domain.Phase, userText, reply string) {
	s.log.Log(convlog.Event{
		UserID:     session.OwnerID,
		SessionID:  session.ID,
		Channel:    "discovery_chat",
		Direction:  "outbound",
		EventType:  "user_message",
		Phase:      string(phase),
		ContentRaw: userText,
	})
	s.log.Log(convlog.Event{
		UserID:     session.OwnerID,
		SessionID:  session.ID,
		Channel:    "discovery_chat",
		Direction:  "inbound",
		EventType:  "assistant_message",
		Phase:      string(session.CurrentPhase),
		ContentRaw: reply,
	})
}

func optModel(opts *TurnOptions) string {
	if opts == nil {
		return ""
	}
	return opts.Model
}

func optTemperature(opts *TurnOptions) *float64 {
	if opts == nil {
		return nil
	}
	return opts.Temperature
}
