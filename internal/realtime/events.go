package realtime

import (
	"time"

	"talentflow/internal/models"

	"github.com/google/uuid"
)

// EventType identifies the kind of mutation an event describes.
type EventType string

const (
	EventCreated      EventType = "created"
	EventUpdated      EventType = "updated"
	EventDeleted      EventType = "deleted"
	EventStageChanged EventType = "stageChanged"
	EventCommentAdded EventType = "commentAdded"
)

// Event is what subscribers of a tenant channel receive. Payload shapes
// are fixed per type; updated deliberately omits the entity so receivers
// refetch.
type Event struct {
	Type     EventType   `json:"type"`
	TenantID uuid.UUID   `json:"tenant_id"`
	Origin   string      `json:"origin,omitempty"`
	At       time.Time   `json:"at"`
	Payload  interface{} `json:"payload"`
}

type CreatedPayload struct {
	Candidate *models.Candidate `json:"candidate"`
	Actor     string            `json:"actor"`
}

type UpdatedPayload struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Actor       string    `json:"actor"`
}

type DeletedPayload struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Actor       string    `json:"actor"`
}

type StageChangedPayload struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	OldStage    string    `json:"old_stage"`
	NewStage    string    `json:"new_stage"`
	Actor       string    `json:"actor"`
}

type CommentAddedPayload struct {
	CandidateID uuid.UUID      `json:"candidate_id"`
	Comment     models.Comment `json:"comment"`
	Actor       string         `json:"actor"`
}
