// Package gateway defines the contract of the remote backend: typed CRUD over
// named collections plus authentication primitives. Implementations live in
// the sqlite and rest subpackages.
package gateway

import (
	"context"

	"github.com/starford/studytrack/internal/models"
)

// Row is one record as exchanged with the backend, keyed by column name.
type Row = map[string]any

// Table names a remote collection and its identity column.
type Table struct {
	Name string
	Key  string
}

// Collections used by the application.
var (
	LearningTypes = Table{Name: "learning_types", Key: "id"}
	StudyRecords  = Table{Name: "study_records", Key: "id"}
	StudyPlans    = Table{Name: "study_plans", Key: "id"}
	Issues        = Table{Name: "issues", Key: "issue_id"}
	StockBasic    = Table{Name: "stock_basic", Key: "ts_code"}
)

// Op is a filter operator.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
)

// Filter restricts a query to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq returns an equality filter.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// Gte returns a lower-bound filter.
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }

// Lte returns an upper-bound filter.
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }

// Query describes a list request. A zero Limit means no upper bound.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int
}

// NewestFirst orders by creation time, latest first.
func NewestFirst(filters ...Filter) Query {
	return Query{Filters: filters, OrderBy: "created_at", Desc: true}
}

// Data is the collection half of the gateway.
type Data interface {
	// List returns the rows matching q, in the order q asks for.
	List(ctx context.Context, t Table, q Query) ([]Row, error)
	// Get returns the single row whose key equals id. Zero or several
	// matches fail with apperr.ErrNoSingleRow.
	Get(ctx context.Context, t Table, id any) (Row, error)
	// Insert persists row and returns it with server-assigned identity and timestamps.
	Insert(ctx context.Context, t Table, row Row) (Row, error)
	// Update applies the columns present in patch to the row keyed by id.
	Update(ctx context.Context, t Table, id any, patch Row) (Row, error)
	// Delete removes the row keyed by id. Deleting a missing id may or may not fail.
	Delete(ctx context.Context, t Table, id any) error
	// Count returns the exact number of rows matching filters.
	Count(ctx context.Context, t Table, filters ...Filter) (int, error)
	// Upsert inserts rows, updating existing ones that collide on onConflict.
	Upsert(ctx context.Context, t Table, rows []Row, onConflict string) error
}

// Auth is the authentication half of the gateway.
type Auth interface {
	// GetCurrentUser returns the signed-in user, or nil when unauthenticated.
	GetCurrentUser(ctx context.Context) (*models.User, error)
	// OnSessionChange delivers every later session transition to fn exactly
	// once and in order, until the returned function is called.
	OnSessionChange(fn func(models.SessionEvent)) (unsubscribe func())
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*models.Session, error)
}

// Gateway is the full remote backend.
type Gateway interface {
	Data
	Auth
	Close() error
}
