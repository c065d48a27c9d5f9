package store

import (
	"context"
	"log/slog"

	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
)

// LearningTypes holds study categories.
type LearningTypes = Store[models.LearningType, models.LearningTypeInput, models.LearningTypePatch]

// StudyRecords holds study notes.
type StudyRecords = Store[models.StudyRecord, models.StudyRecordInput, models.StudyRecordPatch]

// StudyPlans holds study plans.
type StudyPlans = Store[models.StudyPlan, models.StudyPlanInput, models.StudyPlanPatch]

// Issues holds issue records.
type Issues = Store[models.Issue, models.IssueInput, models.IssuePatch]

func NewLearningTypes(gw gateway.Data, logger *slog.Logger) *LearningTypes {
	return New[models.LearningType, models.LearningTypeInput, models.LearningTypePatch](gw, gateway.LearningTypes, "learning types", logger)
}

func NewStudyRecords(gw gateway.Data, logger *slog.Logger) *StudyRecords {
	return New[models.StudyRecord, models.StudyRecordInput, models.StudyRecordPatch](gw, gateway.StudyRecords, "study records", logger)
}

func NewStudyPlans(gw gateway.Data, logger *slog.Logger) *StudyPlans {
	return New[models.StudyPlan, models.StudyPlanInput, models.StudyPlanPatch](gw, gateway.StudyPlans, "study plans", logger)
}

func NewIssues(gw gateway.Data, logger *slog.Logger) *Issues {
	return New[models.Issue, models.IssueInput, models.IssuePatch](gw, gateway.Issues, "issues", logger)
}

// FetchStudyRecordsByType narrows the held study records to one learning type.
func FetchStudyRecordsByType(ctx context.Context, s *StudyRecords, learningTypeID int64) error {
	return s.FetchWhere(ctx, gateway.Eq("learning_type_id", learningTypeID))
}

// FetchIssuesByStatus narrows the held issues to one status.
func FetchIssuesByStatus(ctx context.Context, s *Issues, status models.IssueStatus) error {
	return s.FetchWhere(ctx, gateway.Eq("status", string(status)))
}
