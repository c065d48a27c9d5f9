package api

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/studytrack/internal/app"
	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/router"
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email" example:"me@example.com"`
	Password string `json:"password" example:"secret123"`
}

// Validate implements validation.Validatable.
func (c CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Password, validation.Required),
	)
}

// SessionResponse is the public session state.
type SessionResponse = app.SessionView

// ListResponse is a store snapshot. Error carries the last failure message;
// Items then holds whatever the store had before.
type ListResponse[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// RefreshResponse reports how many instruments a cache refresh stored.
type RefreshResponse struct {
	Count int `json:"count" example:"5321"`
}

// UploadResponse is returned after a note upload was imported.
type UploadResponse struct {
	Filename string             `json:"filename" example:"channels.md"`
	Record   models.StudyRecord `json:"record"`
}

// PageView is the view model served for every page.
type PageView struct {
	Route PageRoute         `json:"route"`
	Menu  []router.MenuItem `json:"menu"`
	User  *models.User      `json:"user"`
	Data  any               `json:"data,omitempty"`
}

// PageRoute identifies the page being rendered.
type PageRoute struct {
	Name   string            `json:"name"`
	Title  string            `json:"title"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
}

var (
	planStatuses   = []any{models.PlanPending, models.PlanInProgress, models.PlanCompleted}
	planPriorities = []any{models.PlanHigh, models.PlanMedium, models.PlanLow}
	issueStatuses  = []any{models.IssuePending, models.IssueInProgress, models.IssueResolved}
	issuePriority  = []any{models.IssueHigh, models.IssueMedium, models.IssueLow}
)

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
}

// The validators mirror the constraints of the backend schema: non-empty
// titles and names, enum membership when a status or priority is given.

func validateLearningType(in models.LearningTypeInput) error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required),
	))
}

func validateLearningTypePatch(p models.LearningTypePatch) error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty),
	))
}

func validateStudyRecord(in models.StudyRecordInput) error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
	))
}

func validateStudyRecordPatch(p models.StudyRecordPatch) error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty),
	))
}

func validateStudyPlan(in models.StudyPlanInput) error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Status, validation.In(planStatuses...)),
		validation.Field(&in.Priority, validation.In(planPriorities...)),
	))
}

func validateStudyPlanPatch(p models.StudyPlanPatch) error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty),
		validation.Field(&p.Status, validation.In(planStatuses...)),
		validation.Field(&p.Priority, validation.In(planPriorities...)),
	))
}

func validateIssue(in models.IssueInput) error {
	return invalid(validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Status, validation.In(issueStatuses...)),
		validation.Field(&in.Priority, validation.In(issuePriority...)),
	))
}

func validateIssuePatch(p models.IssuePatch) error {
	return invalid(validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty),
		validation.Field(&p.Status, validation.In(issueStatuses...)),
		validation.Field(&p.Priority, validation.In(issuePriority...)),
	))
}
