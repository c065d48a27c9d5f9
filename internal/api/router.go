package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studytrack/internal/app"
	"github.com/starford/studytrack/internal/models"
)

// NewRouter creates the chi router for /api. Auth and session endpoints are
// public; everything else requires a signed-in user. The inbox upload is
// mounted only when the App has an importer.
func NewRouter(a *app.App) chi.Router {
	h := NewHandler(a)

	r := chi.NewRouter()

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/session", h.Session)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(a.Lookup, h.logger))

		resource[models.LearningType, models.LearningTypeInput, models.LearningTypePatch]{
			store:         a.LearningTypes,
			logger:        h.logger,
			validateInput: validateLearningType,
			validatePatch: validateLearningTypePatch,
		}.mount(r, "/learning-types", false)

		resource[models.StudyRecord, models.StudyRecordInput, models.StudyRecordPatch]{
			store:         a.StudyRecords,
			logger:        h.logger,
			validateInput: validateStudyRecord,
			validatePatch: validateStudyRecordPatch,
			filtersOf:     studyRecordFilters,
		}.mount(r, "/study-records", false)

		resource[models.StudyPlan, models.StudyPlanInput, models.StudyPlanPatch]{
			store:         a.StudyPlans,
			logger:        h.logger,
			validateInput: validateStudyPlan,
			validatePatch: validateStudyPlanPatch,
		}.mount(r, "/study-plans", false)

		resource[models.Issue, models.IssueInput, models.IssuePatch]{
			store:         a.Issues,
			logger:        h.logger,
			validateInput: validateIssue,
			validatePatch: validateIssuePatch,
			filtersOf:     issueFilters,
		}.mount(r, "/issues", true)

		r.Get("/stocks", h.Stocks)
		r.Post("/stocks/refresh", h.RefreshStocks)
		r.Get("/stocks/{code}/daily", h.StockDaily)

		r.Get("/weather", h.Weather)

		r.Get("/events", a.Events.ServeHTTP)

		if a.Inbox != nil {
			r.Post("/inbox", NewUploadHandler(a.Inbox, h.logger).Upload)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
	return r
}
