package models

import (
	"time"

	"github.com/google/uuid"
)

// History entry actions.
const (
	ActionCreated      = "created"
	ActionEdited       = "edited"
	ActionStageChanged = "stage_changed"
	ActionArchived     = "archived"
	ActionUnarchived   = "unarchived"
)

// Test result statuses.
const (
	TestStatusNotSent = "not_sent"
	TestStatusPending = "pending"
	TestStatusPassed  = "passed"
	TestStatusFailed  = "failed"
	TestStatusReview  = "review"
)

// JSONB represents a PostgreSQL JSONB object column.
type JSONB map[string]interface{}

// StringList represents a JSONB array of strings.
type StringList []string

// HistoryEntry is one immutable audit record on a candidate. History is
// append-only; entries are never edited or removed.
type HistoryEntry struct {
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Comment is one append-only operator comment on a candidate.
type Comment struct {
	Actor     string    `json:"actor"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Evidence describes a file artifact attached to a test result.
type Evidence struct {
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	StorageRef string    `json:"storage_ref"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TestResult is one assessment entry keyed by test id inside a candidate.
// A not_sent result is treated as absent from active views even when the
// key exists.
type TestResult struct {
	Status    string    `json:"status"`
	Score     *float64  `json:"score,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Evidence  *Evidence `json:"evidence,omitempty"`
	AISummary string    `json:"ai_summary,omitempty"`
}

type Candidate struct {
	ID           uuid.UUID             `json:"id" db:"id"`
	TenantID     uuid.UUID             `json:"tenant_id" db:"tenant_id"`
	Name         string                `json:"name" db:"name"`
	Email        string                `json:"email" db:"email"`
	Phone        string                `json:"phone" db:"phone"`
	Position     string                `json:"position" db:"position"`
	Source       string                `json:"source" db:"source"`
	Stage        string                `json:"stage" db:"stage"`
	Rating       int                   `json:"rating" db:"rating"`
	IsArchived   bool                  `json:"is_archived" db:"is_archived"`
	ArchivedAt   *time.Time            `json:"archived_at" db:"archived_at"`
	ArchivedBy   *string               `json:"archived_by" db:"archived_by"`
	History      []HistoryEntry        `json:"history" db:"history"`
	Comments     []Comment             `json:"comments" db:"comments"`
	TestResults  map[string]TestResult `json:"test_results" db:"test_results"`
	Tags         StringList            `json:"tags" db:"tags"`
	CustomFields JSONB                 `json:"custom_fields" db:"custom_fields"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at" db:"updated_at"`
}

// CandidateFilter narrows List queries. Search matches name, email and
// phone case-insensitively.
type CandidateFilter struct {
	Stage    *string
	Position *string
	Source   *string
	Archived *bool
	Search   string
	SortBy   string
	Order    string
	Page     int
	Limit    int
}

// CandidatePatch carries the whitelisted mutable fields for Update. Nil
// means "leave unchanged". Id, tenant, history and comments can never be
// patched.
type CandidatePatch struct {
	Name         *string     `json:"name"`
	Email        *string     `json:"email"`
	Phone        *string     `json:"phone"`
	Position     *string     `json:"position"`
	Source       *string     `json:"source"`
	Rating       *int        `json:"rating"`
	Tags         *StringList `json:"tags"`
	CustomFields *JSONB      `json:"custom_fields"`
}

// TestResultPatch carries the mergeable test result fields for SetResult.
type TestResultPatch struct {
	Status *string  `json:"status"`
	Score  *float64 `json:"score"`
	Notes  *string  `json:"notes"`
}

// ValidTestStatus reports whether s is one of the known test statuses.
func ValidTestStatus(s string) bool {
	switch s {
	case TestStatusNotSent, TestStatusPending, TestStatusPassed, TestStatusFailed, TestStatusReview:
		return true
	}
	return false
}
