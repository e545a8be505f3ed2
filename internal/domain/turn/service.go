package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/careagent/internal/llm"
	"github.com/ehr/careagent/internal/pipeline"
	"github.com/ehr/careagent/internal/platform/auth"
)

var (
	ErrUnknownMode   = errors.New("mode must be base or extended")
	ErrInvalidAction = errors.New("action must be one of approve, amend, escalate")
	ErrNotPending    = errors.New("turn is not pending review")
	ErrNoteRequired  = errors.New("note is required to amend a turn")
)

// Service runs turns through the orchestrator and keeps the review queue.
type Service struct {
	handlers    map[string]pipeline.TurnHandler
	defaultMode string
	adapter     llm.Adapter
	repo        Repository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a turn service. handlers maps a pipeline mode to its
// orchestrator; requests that name no mode use defaultMode.
func NewService(handlers map[string]pipeline.TurnHandler, defaultMode string, adapter llm.Adapter, repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		handlers:    handlers,
		defaultMode: defaultMode,
		adapter:     adapter,
		repo:        repo,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit handles one utterance for the caller on ctx and stores the result.
// The region falls back to the one carried by the caller's token.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Record, error) {
	mode := req.Mode
	if mode == "" {
		mode = s.defaultMode
	}
	handler, ok := s.handlers[mode]
	if !ok {
		return nil, ErrUnknownMode
	}

	userID := auth.UserIDFromContext(ctx)
	region := req.Region
	if region == "" {
		region = auth.RegionFromContext(ctx)
	}
	tc := &pipeline.TurnContext{UserID: userID, Region: region, Memory: req.Memory}

	start := s.now()
	out, err := handler.HandleTurn(ctx, req.Utterance, tc, s.adapter)
	if err != nil {
		return nil, fmt.Errorf("handle turn: %w", err)
	}
	rec := newRecord(out, userID, s.now().Sub(start))

	// A cancelled request still leaves an auditable record.
	if err := s.repo.Create(context.WithoutCancel(ctx), rec); err != nil {
		return nil, fmt.Errorf("store turn: %w", err)
	}

	s.logger.Info().
		Str("turn_id", rec.ID.String()).
		Str("user_id", userID).
		Str("mode", rec.Mode).
		Str("risk_tier", rec.RiskTier).
		Str("triage_band", rec.TriageBand).
		Str("confidence", rec.Confidence).
		Bool("needs_review", rec.NeedsReview).
		Str("hitl_rule", rec.HITLRule).
		Int64("latency_ms", rec.LatencyMS).
		Msg("turn handled")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// ListMine lists the caller's own turns, newest first.
func (s *Service) ListMine(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByUser(ctx, auth.UserIDFromContext(ctx), limit, offset)
}

func (s *Service) ReviewQueue(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListPendingReview(ctx, limit, offset)
}

// Review records a reviewer's decision on a held turn. Each turn is reviewed once.
func (s *Service) Review(ctx context.Context, id uuid.UUID, req *ReviewRequest) (*Record, error) {
	status, ok := actionStatus[req.Action]
	if !ok {
		return nil, ErrInvalidAction
	}
	if req.Action == ActionAmend && req.Note == "" {
		return nil, ErrNoteRequired
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Pending() {
		return nil, ErrNotPending
	}

	now := s.now()
	rec.ReviewStatus = status
	rec.ReviewedBy = auth.UserIDFromContext(ctx)
	rec.ReviewNote = req.Note
	rec.ReviewedAt = &now
	if err := s.repo.UpdateReview(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("turn_id", id.String()).
		Str("reviewed_by", rec.ReviewedBy).
		Str("review_status", status).
		Msg("turn reviewed")
	return rec, nil
}
