package sqlite

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
)

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "studytrack-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// tickingClock advances one millisecond per call so timestamps are distinct.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range append(dataTables, "users", "refresh_tokens") {
		var n int
		require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM `+table).Scan(&n), table)
	}
}

func TestInsertAssignsIdentityAndTimestamps(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	lt, err := gateway.Insert[models.LearningType](ctx, db, gateway.LearningTypes,
		models.LearningTypeInput{Name: "Go", Description: "language"})
	require.NoError(t, err)
	assert.NotZero(t, lt.ID)
	assert.Equal(t, "Go", lt.Name)
	assert.False(t, lt.CreatedAt.IsZero())
	assert.Equal(t, lt.CreatedAt, lt.UpdatedAt)
}

func TestListOrderAndFilters(t *testing.T) {
	db := testDB(t, WithClock(tickingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := db.Insert(ctx, gateway.Issues, gateway.Row{"title": title, "status": string(models.IssuePending)})
		require.NoError(t, err)
	}
	_, err := db.Insert(ctx, gateway.Issues, gateway.Row{"title": "done", "status": string(models.IssueResolved)})
	require.NoError(t, err)

	issues, err := gateway.List[models.Issue](ctx, db, gateway.Issues, gateway.NewestFirst())
	require.NoError(t, err)
	require.Len(t, issues, 4)
	assert.Equal(t, "done", issues[0].Title)
	assert.Equal(t, "first", issues[3].Title)

	pending, err := gateway.List[models.Issue](ctx, db, gateway.Issues,
		gateway.NewestFirst(gateway.Eq("status", string(models.IssuePending))))
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	ranged, err := gateway.List[models.Issue](ctx, db, gateway.Issues,
		gateway.Query{OrderBy: "issue_id", Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "second", ranged[0].Title)
	assert.Equal(t, "third", ranged[1].Title)

	n, err := db.Count(ctx, gateway.Issues, gateway.Gte("issue_id", 2), gateway.Lte("issue_id", 3))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetRequiresExactlyOneRow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.Get(ctx, gateway.StudyRecords, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNoSingleRow))
	var re *apperr.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, noSingleRowMsg, re.Message)
}

func TestUpdateIsPartial(t *testing.T) {
	db := testDB(t, WithClock(tickingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))
	ctx := context.Background()

	rec, err := gateway.Insert[models.StudyRecord](ctx, db, gateway.StudyRecords,
		models.StudyRecordInput{Title: "chi", Description: "router", Link: "https://go-chi.io"})
	require.NoError(t, err)

	title := "chi v5"
	updated, err := gateway.Update[models.StudyRecord](ctx, db, gateway.StudyRecords, rec.ID,
		models.StudyRecordPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "chi v5", updated.Title)
	assert.Equal(t, "router", updated.Description)
	assert.Equal(t, rec.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(rec.UpdatedAt))

	_, err = gateway.Update[models.StudyRecord](ctx, db, gateway.StudyRecords, rec.ID+100,
		models.StudyRecordPatch{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrNoSingleRow)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	row, err := db.Insert(ctx, gateway.LearningTypes, gateway.Row{"name": "SQL"})
	require.NoError(t, err)
	require.NoError(t, db.Delete(ctx, gateway.LearningTypes, row["id"]))
	require.NoError(t, db.Delete(ctx, gateway.LearningTypes, row["id"]))

	n, err := db.Count(ctx, gateway.LearningTypes)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConstraintFailuresSurfaceAsRemoteErrors(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.Insert(ctx, gateway.StudyPlans, gateway.Row{"title": "x", "status": "someday"})
	var re *apperr.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "insert", re.Op)
	assert.NotEmpty(t, re.Message)

	_, err = db.Insert(ctx, gateway.LearningTypes, gateway.Row{"name": "x", "colour": "red"})
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Message, "colour")

	_, err = db.List(ctx, gateway.Table{Name: "users", Key: "id"}, gateway.Query{})
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Message, "does not exist")
}

func TestUpsertOnConflict(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	stocks := []models.StockBasic{
		{TSCode: "000001.SZ", Name: "平安银行"},
		{TSCode: "600000.SH", Name: "浦发银行"},
	}
	require.NoError(t, gateway.Upsert(ctx, db, gateway.StockBasic, stocks, "ts_code"))

	stocks[0].Name = "平安银行股份"
	require.NoError(t, gateway.Upsert(ctx, db, gateway.StockBasic, stocks[:1], "ts_code"))

	n, err := db.Count(ctx, gateway.StockBasic)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := gateway.Get[models.StockBasic](ctx, db, gateway.StockBasic, "000001.SZ")
	require.NoError(t, err)
	assert.Equal(t, "平安银行股份", got.Name)
}
