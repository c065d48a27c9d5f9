// Package app assembles the application context: one gateway, one session,
// one store per entity and the auxiliary providers, constructed once at
// startup and passed to every consumer.
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/inbox"
	"github.com/starford/studytrack/internal/market"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/router"
	"github.com/starford/studytrack/internal/session"
	"github.com/starford/studytrack/internal/sse"
	"github.com/starford/studytrack/internal/storage"
	"github.com/starford/studytrack/internal/store"
	"github.com/starford/studytrack/internal/weather"
)

// App is the application context.
type App struct {
	Gateway gateway.Gateway
	Session *session.Session

	LearningTypes *store.LearningTypes
	StudyRecords  *store.StudyRecords
	StudyPlans    *store.StudyPlans
	Issues        *store.Issues

	Routes *router.Table
	Guard  *router.Guard

	// Lookup resolves the current user the same way the guard does.
	Lookup router.UserLookup

	Weather *weather.Client
	Stocks  *market.Stocks
	Events  *sse.Broker

	// Inbox is nil unless a note inbox is configured.
	Inbox *inbox.Importer

	Location *time.Location
	Logger   *slog.Logger

	unsubs    []func()
	closeOnce sync.Once
}

type options struct {
	logger      *slog.Logger
	basePath    string
	trustCached bool
	weather     *weather.Client
	market      market.Source
	location    *time.Location
	coalesce    time.Duration
	inbox       storage.Provider
}

// Option configures an App.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithBasePath mounts the route table under p.
func WithBasePath(p string) Option { return func(o *options) { o.basePath = p } }

// WithTrustCachedSession makes the guard read the cached session state
// instead of asking the gateway on every navigation.
func WithTrustCachedSession(v bool) Option { return func(o *options) { o.trustCached = v } }

// WithWeather sets the forecast client.
func WithWeather(c *weather.Client) Option { return func(o *options) { o.weather = c } }

// WithMarket sets the financial data source behind the stock listing.
func WithMarket(src market.Source) Option { return func(o *options) { o.market = src } }

// WithLocation sets the zone used for local times in view models.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.location = loc } }

// WithEventCoalescing sets the store.updated coalescing window.
func WithEventCoalescing(d time.Duration) Option { return func(o *options) { o.coalesce = d } }

// WithInbox enables importing study notes from files.
func WithInbox(files storage.Provider) Option { return func(o *options) { o.inbox = files } }

// New builds the application context over gw. The gateway is owned by the
// App from here on and closed by Close.
func New(gw gateway.Gateway, opts ...Option) *App {
	o := options{logger: slog.Default(), location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	if o.weather == nil {
		o.weather = weather.New("", "", weather.WithLogger(o.logger), weather.WithLocation(o.location))
	}
	if o.market == nil {
		o.market = market.NewClient("", "", market.WithLogger(o.logger))
	}

	a := &App{
		Gateway:       gw,
		Session:       session.New(gw, o.logger),
		LearningTypes: store.NewLearningTypes(gw, o.logger),
		StudyRecords:  store.NewStudyRecords(gw, o.logger),
		StudyPlans:    store.NewStudyPlans(gw, o.logger),
		Issues:        store.NewIssues(gw, o.logger),
		Routes:        router.NewTable(o.basePath, router.Routes()),
		Weather:       o.weather,
		Stocks:        market.NewStocks(gw, o.market, o.logger),
		Events:        sse.NewBroker(o.coalesce),
		Location:      o.location,
		Logger:        o.logger,
	}

	lookup := router.FreshLookup(gw)
	if o.trustCached {
		lookup = router.CachedLookup(a.Session)
	}
	a.Lookup = lookup
	a.Guard = router.NewGuard(a.Routes, lookup, o.logger)
	if o.inbox != nil {
		a.Inbox = inbox.NewImporter(o.inbox, a.StudyRecords, a.LearningTypes, o.logger)
	}

	a.bridgeEvents()
	return a
}

// Start initializes the session state.
func (a *App) Start(ctx context.Context) error {
	return a.Session.Initialize(ctx)
}

// Close tears down subscriptions, the event broker and the gateway.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		for _, u := range a.unsubs {
			u()
		}
		a.Session.Close()
		a.Events.Close()
		err = a.Gateway.Close()
	})
	return err
}

// SessionView is the public shape of the session state.
type SessionView struct {
	User          *models.User `json:"user"`
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
}

// SessionView returns the current session state for clients.
func (a *App) SessionView() SessionView {
	return sessionView(a.Session.Snapshot())
}

func sessionView(st session.State) SessionView {
	return SessionView{User: st.User, Authenticated: st.Authenticated(), Loading: st.Loading}
}

// bridgeEvents forwards session and store changes to the event broker.
func (a *App) bridgeEvents() {
	a.unsubs = append(a.unsubs,
		a.Session.Subscribe(func(st session.State) {
			a.Events.PublishSession(sessionView(st))
		}),
		a.LearningTypes.Subscribe(forward[models.LearningType](a.Events, a.LearningTypes.Name())),
		a.StudyRecords.Subscribe(forward[models.StudyRecord](a.Events, a.StudyRecords.Name())),
		a.StudyPlans.Subscribe(forward[models.StudyPlan](a.Events, a.StudyPlans.Name())),
		a.Issues.Subscribe(forward[models.Issue](a.Events, a.Issues.Name())),
	)
}

func forward[T models.Entity](b *sse.Broker, name string) func(store.State[T]) {
	return func(st store.State[T]) {
		b.PublishStoreUpdate(sse.StoreUpdate{
			Store:   name,
			Count:   len(st.Items),
			Loading: st.Loading,
			Error:   st.Error,
		})
	}
}

// LocalTime formats t in the application's zone, or "" for a zero time.
func (a *App) LocalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(a.Location).Format("2006-01-02 15:04:05")
}
