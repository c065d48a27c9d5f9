package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studytrack/internal/app"
	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	app    *app.App
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(a *app.App) *Handler {
	return &Handler{app: a, logger: a.Logger.With(slog.String("component", "api"))}
}

// Register handles POST /api/auth/register.
//
//	@Summary	Create an account and sign in
//	@Tags		auth
//	@Param		body	body		CredentialsRequest	true	"Credentials"
//	@Success	201		{object}	SessionResponse
//	@Failure	400		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Router		/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "register", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, "register", invalid(err))
		return
	}
	sess, err := h.app.Gateway.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

// Login handles POST /api/auth/login.
//
//	@Summary	Sign in with email and password
//	@Tags		auth
//	@Param		body	body		CredentialsRequest	true	"Credentials"
//	@Success	200		{object}	SessionResponse
//	@Failure	400		{object}	errResponse
//	@Router		/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "login", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, "login", invalid(err))
		return
	}
	sess, err := h.app.Gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// sessionResponse describes the session returned by a sign-in. A sign-up
// awaiting email confirmation has no session yet.
func sessionResponse(sess *models.Session) SessionResponse {
	if sess == nil {
		return SessionResponse{}
	}
	u := sess.User
	return SessionResponse{User: &u, Authenticated: true}
}

// Logout handles POST /api/auth/logout.
//
//	@Summary	Sign out the current session
//	@Tags		auth
//	@Success	204
//	@Failure	502	{object}	errResponse
//	@Router		/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Gateway.SignOut(r.Context()); err != nil {
		writeError(w, h.logger, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/session.
//
//	@Summary	Current session state
//	@Tags		auth
//	@Success	200	{object}	SessionResponse
//	@Router		/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.SessionView())
}

// Stocks handles GET /api/stocks?page=.
//
//	@Summary	One page of the cached stock listing
//	@Tags		stocks
//	@Param		page	query		int	false	"1-based page number"
//	@Success	200		{object}	models.StockPage
//	@Router		/stocks [get]
func (h *Handler) Stocks(w http.ResponseWriter, r *http.Request) {
	n := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("page must be a positive integer"))
			return
		}
		n = v
	}
	writeJSON(w, http.StatusOK, h.app.Stocks.Page(r.Context(), n))
}

// RefreshStocks handles POST /api/stocks/refresh.
//
//	@Summary	Re-fetch the stock listing and upsert it into the cache
//	@Tags		stocks
//	@Success	200	{object}	RefreshResponse
//	@Failure	502	{object}	errResponse
//	@Router		/stocks/refresh [post]
func (h *Handler) RefreshStocks(w http.ResponseWriter, r *http.Request) {
	n, err := h.app.Stocks.Refresh(r.Context())
	if err != nil {
		writeError(w, h.logger, "refresh stocks", err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Count: n})
}

// StockDaily handles GET /api/stocks/{code}/daily.
//
//	@Summary	Daily bars of one instrument
//	@Tags		stocks
//	@Param		code	path		string	true	"ts_code, e.g. 000001.SZ"
//	@Success	200		{object}	map[string][]models.DailyBar
//	@Router		/stocks/{code}/daily [get]
func (h *Handler) StockDaily(w http.ResponseWriter, r *http.Request) {
	bars := h.app.Stocks.Daily(r.Context(), chi.URLParam(r, "code"))
	writeJSON(w, http.StatusOK, map[string]any{"items": bars})
}

// Weather handles GET /api/weather?city=.
//
//	@Summary	Up to three daily forecasts
//	@Tags		weather
//	@Param		city	query	string	false	"City name"
//	@Success	200		{array}	models.WeatherDay
//	@Router		/weather [get]
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Weather.Daily(r.Context(), r.URL.Query().Get("city")))
}

// resource serves CRUD endpoints for one store.
type resource[T models.Entity, C any, P any] struct {
	store         *store.Store[T, C, P]
	logger        *slog.Logger
	validateInput func(C) error
	validatePatch func(P) error
	filtersOf     func(*http.Request) ([]gateway.Filter, error)
}

// list handles GET /api/{resource}.
//
//	@Summary	Fetch a collection; read failures come back in the error field
//	@Tags		resources
//	@Param		resource			path		string	true	"Collection"	Enums(learning-types, study-records, study-plans, issues)
//	@Param		learning_type_id	query		int		false	"study-records only"
//	@Param		status				query		string	false	"issues only"
//	@Success	200					{object}	ListResponse[any]
//	@Failure	400					{object}	errResponse
//	@Router		/{resource} [get]
func (rs resource[T, C, P]) list(w http.ResponseWriter, r *http.Request) {
	var filters []gateway.Filter
	if rs.filtersOf != nil {
		f, err := rs.filtersOf(r)
		if err != nil {
			writeError(w, rs.logger, "list "+rs.store.Name(), err)
			return
		}
		filters = f
	}
	if err := rs.store.FetchWhere(r.Context(), filters...); err != nil {
		writeError(w, rs.logger, "list "+rs.store.Name(), err)
		return
	}
	st := rs.store.Snapshot()
	writeJSON(w, http.StatusOK, ListResponse[T]{Items: st.Items, Loading: st.Loading, Error: st.Error})
}

// get handles GET /api/issues/{id}.
//
//	@Summary	One issue by id
//	@Tags		resources
//	@Param		id	path		int	true	"Issue id"
//	@Success	200	{object}	models.Issue
//	@Failure	404	{object}	errResponse
//	@Router		/issues/{id} [get]
func (rs resource[T, C, P]) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, rs.logger, "get "+rs.store.Name(), err)
		return
	}
	item, err := rs.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, rs.logger, "get "+rs.store.Name(), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// create handles POST /api/{resource}.
//
//	@Summary	Create an entity and prepend it to the collection
//	@Tags		resources
//	@Param		resource	path		string	true	"Collection"	Enums(learning-types, study-records, study-plans, issues)
//	@Success	201			{object}	object
//	@Failure	400			{object}	errResponse
//	@Failure	502			{object}	errResponse
//	@Router		/{resource} [post]
func (rs resource[T, C, P]) create(w http.ResponseWriter, r *http.Request) {
	var in C
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, rs.logger, "create "+rs.store.Name(), err)
		return
	}
	if err := rs.validateInput(in); err != nil {
		writeError(w, rs.logger, "create "+rs.store.Name(), err)
		return
	}
	item, err := rs.store.Create(r.Context(), in)
	if err != nil {
		writeError(w, rs.logger, "create "+rs.store.Name(), err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// update handles PUT /api/{resource}/{id}. Nullable columns are cleared by
// sending null.
//
//	@Summary	Apply a partial update
//	@Tags		resources
//	@Param		resource	path		string	true	"Collection"	Enums(learning-types, study-records, study-plans, issues)
//	@Param		id			path		int		true	"Entity id"
//	@Success	200			{object}	object
//	@Failure	400			{object}	errResponse
//	@Failure	404			{object}	errResponse
//	@Router		/{resource}/{id} [put]
func (rs resource[T, C, P]) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, rs.logger, "update "+rs.store.Name(), err)
		return
	}
	var patch P
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, rs.logger, "update "+rs.store.Name(), err)
		return
	}
	if err := rs.validatePatch(patch); err != nil {
		writeError(w, rs.logger, "update "+rs.store.Name(), err)
		return
	}
	item, err := rs.store.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, rs.logger, "update "+rs.store.Name(), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// delete handles DELETE /api/{resource}/{id}. An unknown id is not an error.
//
//	@Summary	Delete an entity
//	@Tags		resources
//	@Param		resource	path	string	true	"Collection"	Enums(learning-types, study-records, study-plans, issues)
//	@Param		id			path	int		true	"Entity id"
//	@Success	204
//	@Router		/{resource}/{id} [delete]
func (rs resource[T, C, P]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, rs.logger, "delete "+rs.store.Name(), err)
		return
	}
	if err := rs.store.Delete(r.Context(), id); err != nil {
		writeError(w, rs.logger, "delete "+rs.store.Name(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rs resource[T, C, P]) mount(r chi.Router, pattern string, withGet bool) {
	r.Route(pattern, func(r chi.Router) {
		r.Get("/", rs.list)
		r.Post("/", rs.create)
		if withGet {
			r.Get("/{id}", rs.get)
		}
		r.Put("/{id}", rs.update)
		r.Delete("/{id}", rs.delete)
	})
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrInvalidInput
	}
	return id, nil
}

func studyRecordFilters(r *http.Request) ([]gateway.Filter, error) {
	raw := r.URL.Query().Get("learning_type_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.ErrInvalidInput
	}
	return []gateway.Filter{gateway.Eq("learning_type_id", id)}, nil
}

func issueFilters(r *http.Request) ([]gateway.Filter, error) {
	status := models.IssueStatus(r.URL.Query().Get("status"))
	if status == "" {
		return nil, nil
	}
	if err := validateIssuePatch(models.IssuePatch{Status: &status}); err != nil {
		return nil, err
	}
	return []gateway.Filter{gateway.Eq("status", string(status))}, nil
}
