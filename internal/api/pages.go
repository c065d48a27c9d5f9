package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studytrack/internal/app"
	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/router"
)

// view loads the data of one page.
type view func(r *http.Request, params map[string]string) (any, error)

// Pages serves the view model of every route in the table.
type Pages struct {
	app    *app.App
	logger *slog.Logger
	views  map[string]view
}

// NewPages returns a router serving every route entry behind the navigation
// guard. Mount it at the table's base path.
func NewPages(a *app.App) chi.Router {
	p := &Pages{app: a, logger: a.Logger.With(slog.String("component", "pages"))}
	p.views = map[string]view{
		router.Home:        p.home,
		router.StudyNotes:  p.studyNotes,
		router.StudyPlan:   p.studyPlan,
		router.Types:       p.learningTypes,
		router.IssueList:   p.issues,
		router.IssueDetail: p.issueDetail,
		router.Stocks:      p.stocks,
	}

	r := chi.NewRouter()
	r.Use(GuardPages(a.Guard))
	for _, e := range a.Routes.Entries() {
		r.Get(e.Pattern(), p.serve(e))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("page not found"))
	})
	return r
}

// MountPath returns the chi mount pattern for a base path.
func MountPath(base string) string {
	if base = strings.TrimSuffix(base, "/"); base == "" {
		return "/"
	}
	return base
}

func (p *Pages) serve(e router.Entry) http.HandlerFunc {
	leaf := e.Leaf()
	return func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, k := range rctx.URLParams.Keys {
				params[k] = rctx.URLParams.Values[i]
			}
		}

		pv := PageView{
			Route: PageRoute{Name: leaf.Name, Title: leaf.Meta.Title, Path: p.app.Routes.URL(e.FullPath), Params: params},
			User:  userFrom(r.Context()),
		}
		if pv.User != nil {
			pv.Menu = p.app.Routes.Menu()
		}
		if load, ok := p.views[leaf.Name]; ok {
			data, err := load(r, params)
			if err != nil {
				writeError(w, p.logger, "render "+leaf.Name, err)
				return
			}
			pv.Data = data
		}
		writeJSON(w, http.StatusOK, pv)
	}
}

func (p *Pages) home(r *http.Request, _ map[string]string) (any, error) {
	return map[string]any{
		"now":     p.app.LocalTime(time.Now()),
		"weather": p.app.Weather.Daily(r.Context(), r.URL.Query().Get("city")),
	}, nil
}

func (p *Pages) studyNotes(r *http.Request, _ map[string]string) (any, error) {
	ctx := r.Context()
	filters, err := studyRecordFilters(r)
	if err != nil {
		return nil, err
	}
	if err := p.app.StudyRecords.FetchWhere(ctx, filters...); err != nil {
		return nil, err
	}
	if err := p.app.LearningTypes.FetchAll(ctx); err != nil {
		return nil, err
	}
	records := p.app.StudyRecords.Snapshot()
	types := p.app.LearningTypes.Snapshot()
	return map[string]any{
		"records":        localize(p.app, records.Items, func(rec models.StudyRecord) time.Time { return rec.CreatedAt }),
		"learning_types": types.Items,
		"error":          firstNonEmpty(records.Error, types.Error),
	}, nil
}

func (p *Pages) studyPlan(r *http.Request, _ map[string]string) (any, error) {
	if err := p.app.StudyPlans.FetchAll(r.Context()); err != nil {
		return nil, err
	}
	st := p.app.StudyPlans.Snapshot()
	return map[string]any{
		"plans": localize(p.app, st.Items, func(pl models.StudyPlan) time.Time { return pl.CreatedAt }),
		"error": st.Error,
	}, nil
}

func (p *Pages) learningTypes(r *http.Request, _ map[string]string) (any, error) {
	if err := p.app.LearningTypes.FetchAll(r.Context()); err != nil {
		return nil, err
	}
	st := p.app.LearningTypes.Snapshot()
	return map[string]any{
		"learning_types": localize(p.app, st.Items, func(t models.LearningType) time.Time { return t.CreatedAt }),
		"error":          st.Error,
	}, nil
}

func (p *Pages) issues(r *http.Request, _ map[string]string) (any, error) {
	filters, err := issueFilters(r)
	if err != nil {
		return nil, err
	}
	if err := p.app.Issues.FetchWhere(r.Context(), filters...); err != nil {
		return nil, err
	}
	st := p.app.Issues.Snapshot()
	return map[string]any{
		"issues": localize(p.app, st.Items, func(i models.Issue) time.Time { return i.CreatedAt }),
		"error":  st.Error,
	}, nil
}

func (p *Pages) issueDetail(r *http.Request, params map[string]string) (any, error) {
	id, err := strconv.ParseInt(params["id"], 10, 64)
	if err != nil {
		return nil, apperr.ErrInvalidInput
	}
	issue, err := p.app.Issues.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return localizeOne(p.app, issue, issue.CreatedAt), nil
}

func (p *Pages) stocks(r *http.Request, _ map[string]string) (any, error) {
	n, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if n < 1 {
		n = 1
	}
	return p.app.Stocks.Page(r.Context(), n), nil
}

// localize renders items as rows with an extra created_at_local field.
func localize[T any](a *app.App, items []T, created func(T) time.Time) []gateway.Row {
	out := make([]gateway.Row, 0, len(items))
	for _, it := range items {
		out = append(out, localizeOne(a, it, created(it)))
	}
	return out
}

func localizeOne(a *app.App, item any, created time.Time) gateway.Row {
	row, err := gateway.ToRow(item)
	if err != nil {
		row = gateway.Row{}
	}
	row["created_at_local"] = a.LocalTime(created)
	return row
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
