// Package models defines the domain types for studytrack.
package models

import "time"

// Entity is a record with a numeric identity assigned by the remote store.
type Entity interface {
	Identity() int64
}

// LearningType is a study category that records and plans may reference.
type LearningType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t LearningType) Identity() int64 { return t.ID }

// LearningTypeInput carries the fields of a new learning type.
type LearningTypeInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// LearningTypePatch is a partial learning type update; nil fields are left untouched.
type LearningTypePatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// StudyRecord is a single study note.
type StudyRecord struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Link           string     `json:"link"`
	LearningTypeID *int64     `json:"learning_type_id"`
	Review1Time    *time.Time `json:"review1_time,omitempty"`
	Review2Time    *time.Time `json:"review2_time,omitempty"`
	Review3Time    *time.Time `json:"review3_time,omitempty"`
	Review4Time    *time.Time `json:"review4_time,omitempty"`
	Review5Time    *time.Time `json:"review5_time,omitempty"`
	ReviewStatus   string     `json:"review_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (r StudyRecord) Identity() int64 { return r.ID }

// StudyRecordInput carries the fields of a new study record.
type StudyRecordInput struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Link           string     `json:"link"`
	LearningTypeID *int64     `json:"learning_type_id,omitempty"`
	Review1Time    *time.Time `json:"review1_time,omitempty"`
	Review2Time    *time.Time `json:"review2_time,omitempty"`
	Review3Time    *time.Time `json:"review3_time,omitempty"`
	Review4Time    *time.Time `json:"review4_time,omitempty"`
	Review5Time    *time.Time `json:"review5_time,omitempty"`
	ReviewStatus   string     `json:"review_status,omitempty"`
}

// StudyRecordPatch is a partial study record update. Nullable fields can be
// cleared with Null.
type StudyRecordPatch struct {
	Title          *string             `json:"title,omitempty"`
	Description    *string             `json:"description,omitempty"`
	Link           *string             `json:"link,omitempty"`
	LearningTypeID Nullable[int64]     `json:"learning_type_id,omitzero"`
	Review1Time    Nullable[time.Time] `json:"review1_time,omitzero"`
	Review2Time    Nullable[time.Time] `json:"review2_time,omitzero"`
	Review3Time    Nullable[time.Time] `json:"review3_time,omitzero"`
	Review4Time    Nullable[time.Time] `json:"review4_time,omitzero"`
	Review5Time    Nullable[time.Time] `json:"review5_time,omitzero"`
	ReviewStatus   Nullable[string]    `json:"review_status,omitzero"`
}

// PlanStatus is the progress of a study plan.
type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
)

// PlanPriority ranks study plans.
type PlanPriority string

const (
	PlanHigh   PlanPriority = "high"
	PlanMedium PlanPriority = "medium"
	PlanLow    PlanPriority = "low"
)

// StudyPlan is a time-boxed study goal.
type StudyPlan struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time"`
	Status         PlanStatus   `json:"status"`
	Priority       PlanPriority `json:"priority"`
	LearningTypeID *int64       `json:"learning_type_id"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (p StudyPlan) Identity() int64 { return p.ID }

// StudyPlanInput carries the fields of a new study plan. An empty status or
// priority is left to the backend default.
type StudyPlanInput struct {
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time"`
	Status         PlanStatus   `json:"status,omitempty"`
	Priority       PlanPriority `json:"priority,omitempty"`
	LearningTypeID *int64       `json:"learning_type_id,omitempty"`
}

// StudyPlanPatch is a partial study plan update.
type StudyPlanPatch struct {
	Title          *string         `json:"title,omitempty"`
	Description    *string         `json:"description,omitempty"`
	StartTime      *time.Time      `json:"start_time,omitempty"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	Status         *PlanStatus     `json:"status,omitempty"`
	Priority       *PlanPriority   `json:"priority,omitempty"`
	LearningTypeID Nullable[int64] `json:"learning_type_id,omitzero"`
}
