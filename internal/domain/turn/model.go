package turn

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/careagent/internal/pipeline"
)

// Review statuses. An empty status on a record that needs review means it is
// still pending.
const (
	ReviewPending   = ""
	ReviewApproved  = "approved"
	ReviewAmended   = "amended"
	ReviewEscalated = "escalated"
)

// Review actions accepted by Service.Review.
const (
	ActionApprove  = "approve"
	ActionAmend    = "amend"
	ActionEscalate = "escalate"
)

var actionStatus = map[string]string{
	ActionApprove:  ReviewApproved,
	ActionAmend:    ReviewAmended,
	ActionEscalate: ReviewEscalated,
}

// Record is one persisted conversational turn.
type Record struct {
	ID           uuid.UUID             `db:"id" json:"id"`
	UserID       string                `db:"user_id" json:"user_id"`
	Mode         string                `db:"mode" json:"mode"`
	Model        string                `db:"model" json:"model,omitempty"`
	Confidence   string                `db:"confidence" json:"confidence"`
	RiskTier     string                `db:"risk_tier" json:"risk_tier,omitempty"`
	TriageBand   string                `db:"triage_band" json:"triage_band,omitempty"`
	NeedsReview  bool                  `db:"needs_review" json:"needs_review"`
	HITLRule     string                `db:"hitl_rule" json:"hitl_rule,omitempty"`
	LatencyMS    int64                 `db:"latency_ms" json:"latency_ms"`
	Output       *pipeline.AgentOutput `db:"output" json:"output"`
	ReviewStatus string                `db:"review_status" json:"review_status,omitempty"`
	ReviewedBy   string                `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote   string                `db:"review_note" json:"review_note,omitempty"`
	ReviewedAt   *time.Time            `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt    time.Time             `db:"created_at" json:"created_at"`
}

// Pending reports whether the turn is held for review and nobody has acted on it.
func (r *Record) Pending() bool {
	return r.NeedsReview && r.ReviewStatus == ReviewPending
}

// SubmitRequest is the body of POST /api/v1/turns.
type SubmitRequest struct {
	Utterance string           `json:"utterance"`
	Region    string           `json:"region,omitempty"`
	Mode      string           `json:"mode,omitempty"`
	Memory    *pipeline.Memory `json:"memory,omitempty"`
}

// ReviewRequest is the body of POST /api/v1/turns/:id/review.
type ReviewRequest struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

func newRecord(out *pipeline.AgentOutput, userID string, latency time.Duration) *Record {
	r := &Record{
		ID:         uuid.New(),
		UserID:     userID,
		Mode:       out.Meta.Mode,
		Model:      out.Meta.Model,
		Confidence: string(out.Meta.Confidence),
		LatencyMS:  latency.Milliseconds(),
		Output:     out,
		CreatedAt:  out.Meta.StartedAt,
	}
	if out.Data.Risk != nil {
		r.RiskTier = out.Data.Risk.Tier.String()
	}
	if out.Data.Triage != nil {
		r.TriageBand = out.Data.Triage.Band.String()
	}
	if out.Data.HITL != nil {
		r.NeedsReview = out.Data.HITL.NeedsReview
		r.HITLRule = out.Data.HITL.Rule
	}
	return r
}
