package models

import (
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Subdomain     string     `json:"subdomain" db:"subdomain"`
	Plan          string     `json:"plan" db:"plan"`
	MaxUsers      int        `json:"max_users" db:"max_users"`
	MaxCandidates int        `json:"max_candidates" db:"max_candidates"`
	EntryStage    string     `json:"entry_stage" db:"entry_stage"`
	Sources       StringList `json:"sources" db:"sources"`
	Positions     StringList `json:"positions" db:"positions"`
	Status        string     `json:"status" db:"status"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// StageDefinition is one step of a tenant's hiring pipeline. Core stages
// cannot be renamed or removed.
type StageDefinition struct {
	TenantID uuid.UUID `json:"-" db:"tenant_id"`
	ID       string    `json:"id" db:"id"`
	Title    string    `json:"title" db:"title"`
	Color    string    `json:"color" db:"color"`
	IsCore   bool      `json:"is_core" db:"is_core"`
	Order    int       `json:"order" db:"sort_order"`
}

// TenantUsage holds the live counts compared against the quota. Archived
// candidates count too.
type TenantUsage struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	CandidateCount int       `json:"candidate_count"`
	UserCount      int       `json:"user_count"`
	MaxCandidates  int       `json:"max_candidates"`
	MaxUsers       int       `json:"max_users"`
	Plan           string    `json:"plan"`
	ComputedAt     time.Time `json:"computed_at"`
}

// PlanConfig describes a subscription plan and its quotas.
type PlanConfig struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MaxUsers      int    `json:"max_users"`
	MaxCandidates int    `json:"max_candidates"`
}

var AvailablePlans = map[string]PlanConfig{
	"free": {
		ID:            "free",
		Name:          "Free",
		MaxUsers:      3,
		MaxCandidates: 100,
	},
	"team": {
		ID:            "team",
		Name:          "Team",
		MaxUsers:      25,
		MaxCandidates: 2500,
	},
	"enterprise": {
		ID:            "enterprise",
		Name:          "Enterprise",
		MaxUsers:      500,
		MaxCandidates: 100000,
	},
}

// Stage ids every tenant starts with.
const (
	StageInbox      = "inbox"
	StageScreening  = "screening"
	StageInterview  = "interview"
	StageAssessment = "assessment"
	StageOffer      = "offer"
	StageHired      = "hired"
	StageRejected   = "rejected"
	StageArchived   = "archived"
)

// DefaultStages returns the eight-stage pipeline a new tenant is created
// with, in display order.
func DefaultStages(tenantID uuid.UUID) []*StageDefinition {
	defs := []struct {
		id, title, color string
		core             bool
	}{
		{StageInbox, "Inbox", "#6b7280", true},
		{StageScreening, "Screening", "#3b82f6", false},
		{StageInterview, "Interview", "#8b5cf6", false},
		{StageAssessment, "Assessment", "#f59e0b", false},
		{StageOffer, "Offer", "#10b981", false},
		{StageHired, "Hired", "#22c55e", true},
		{StageRejected, "Rejected", "#ef4444", true},
		{StageArchived, "Archived", "#9ca3af", true},
	}

	stages := make([]*StageDefinition, 0, len(defs))
	for i, d := range defs {
		stages = append(stages, &StageDefinition{
			TenantID: tenantID,
			ID:       d.id,
			Title:    d.title,
			Color:    d.color,
			IsCore:   d.core,
			Order:    i + 1,
		})
	}
	return stages
}
