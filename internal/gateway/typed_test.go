package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/models"
)

func TestToRowKeepsIntegerIdentity(t *testing.T) {
	ltID := int64(9007199254740993)
	row, err := ToRow(models.StudyRecordInput{Title: "t", LearningTypeID: &ltID})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), row["learning_type_id"])
	assert.NotContains(t, row, "review1_time")
}

func TestFromRowDecodesTimestamps(t *testing.T) {
	row := Row{
		"id":          int64(3),
		"name":        "Go",
		"description": nil,
		"created_at":  "2024-05-01T10:00:00.123456+00:00",
		"updated_at":  "2024-05-01T10:00:00Z",
	}
	lt, err := FromRow[models.LearningType](row)
	require.NoError(t, err)
	assert.Equal(t, int64(3), lt.ID)
	assert.Equal(t, "", lt.Description)
	assert.Equal(t, 2024, lt.CreatedAt.Year())
	assert.True(t, lt.UpdatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestToRowPassesRowsThrough(t *testing.T) {
	in := Row{"name": "x"}
	out, err := ToRow(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
