package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/app"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/testutil"
)

type stubSource struct{}

func (stubSource) StockBasic(context.Context) ([]models.StockBasic, error) {
	return []models.StockBasic{{TSCode: "000001.SZ", Name: "平安银行"}, {TSCode: "000002.SZ", Name: "万科A"}}, nil
}

func (stubSource) Daily(context.Context, string) ([]models.DailyBar, error) { return nil, nil }

func testServer(t *testing.T) (*Server, *app.App) {
	t.Helper()
	_, files := testutil.TestInbox(t)
	a := app.New(testutil.TestGateway(t),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		app.WithMarket(stubSource{}),
		app.WithInbox(files),
		app.WithLocation(time.UTC),
	)
	t.Cleanup(func() { _ = a.Close() })
	return New(a), a
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no test helper for calling a tool, so handlers are invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"sign_in":              srv.signIn,
		"list_learning_types":  srv.listLearningTypes,
		"create_learning_type": srv.createLearningType,
		"list_study_records":   srv.listStudyRecords,
		"create_study_record":  srv.createStudyRecord,
		"list_study_plans":     srv.listStudyPlans,
		"list_issues":          srv.listIssues,
		"get_issue":            srv.getIssue,
		"create_issue":         srv.createIssue,
		"resolve_issue":        srv.resolveIssue,
		"list_stocks":          srv.listStocks,
		"import_note":          srv.importNote,
		"get_note_contract":    srv.getNoteContract,
	}
	h, ok := handlers[name]
	require.True(t, ok, "unknown tool: %s", name)

	result, err := h(ctx, req)
	require.NoError(t, err, "tool %s", name)
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeResult[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, r.IsError, resultText(r))
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &v))
	return v
}

func TestSignIn(t *testing.T) {
	srv, a := testServer(t)
	_, err := a.Gateway.SignUp(context.Background(), "learner@example.com", "secret123")
	require.NoError(t, err)

	r := callTool(t, srv, "sign_in", map[string]any{"email": "learner@example.com", "password": "secret123"})
	assert.Equal(t, "signed in as learner@example.com", resultText(r))

	r = callTool(t, srv, "sign_in", map[string]any{"email": "learner@example.com", "password": "nope"})
	assert.True(t, r.IsError)
	assert.Equal(t, "Invalid login credentials", resultText(r))
}

func TestLearningTypesAndRecords(t *testing.T) {
	srv, _ := testServer(t)

	typ := decodeResult[models.LearningType](t, callTool(t, srv, "create_learning_type", map[string]any{"name": "Go"}))
	require.NotZero(t, typ.ID)

	callTool(t, srv, "create_study_record", map[string]any{"title": "channels", "learning_type_id": float64(typ.ID)})
	callTool(t, srv, "create_study_record", map[string]any{"title": "unrelated"})

	all := decodeResult[[]models.StudyRecord](t, callTool(t, srv, "list_study_records", map[string]any{}))
	assert.Len(t, all, 2)
	assert.Equal(t, "unrelated", all[0].Title)

	byType := decodeResult[[]models.StudyRecord](t, callTool(t, srv, "list_study_records", map[string]any{"learning_type_id": float64(typ.ID)}))
	require.Len(t, byType, 1)
	assert.Equal(t, "channels", byType[0].Title)

	types := decodeResult[[]models.LearningType](t, callTool(t, srv, "list_learning_types", map[string]any{}))
	assert.Len(t, types, 1)

	r := callTool(t, srv, "create_study_record", map[string]any{})
	assert.True(t, r.IsError)
}

func TestIssueLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	issue := decodeResult[models.Issue](t, callTool(t, srv, "create_issue", map[string]any{"title": "nil map write"}))
	assert.Equal(t, models.IssuePending, issue.Status)
	assert.Equal(t, models.IssueMedium, issue.Priority)

	resolved := decodeResult[models.Issue](t, callTool(t, srv, "resolve_issue", map[string]any{
		"id": float64(issue.IssueID), "solution": "make the map first",
	}))
	assert.Equal(t, models.IssueResolved, resolved.Status)
	require.NotNil(t, resolved.Solution)
	assert.Equal(t, "make the map first", *resolved.Solution)
	assert.NotNil(t, resolved.ResolutionTime)

	got := decodeResult[models.Issue](t, callTool(t, srv, "get_issue", map[string]any{"id": float64(issue.IssueID)}))
	assert.Equal(t, models.IssueResolved, got.Status)

	pending := decodeResult[[]models.Issue](t, callTool(t, srv, "list_issues", map[string]any{"status": string(models.IssuePending)}))
	assert.Empty(t, pending)

	r := callTool(t, srv, "get_issue", map[string]any{"id": float64(9999)})
	assert.True(t, r.IsError)
}

func TestListStocks(t *testing.T) {
	srv, _ := testServer(t)

	page := decodeResult[models.StockPage](t, callTool(t, srv, "list_stocks", map[string]any{}))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "000001.SZ", page.Items[0].TSCode)
}

func TestImportNote(t *testing.T) {
	srv, a := testServer(t)

	r := callTool(t, srv, "import_note", map[string]any{
		"content":  "---\nlearning_type: Go\n---\n# Select\n\nWaits on several channels.",
		"filename": "select.md",
	})
	res := decodeResult[importResult](t, r)
	assert.Equal(t, "select.md", res.Filename)
	assert.Equal(t, "Select", res.Title)

	uri := "data:text/markdown;base64," + base64.StdEncoding.EncodeToString([]byte("# Context\n\nCancellation."))
	r = callTool(t, srv, "import_note", map[string]any{"url": uri, "filename": "ctx.md"})
	assert.Equal(t, "Context", decodeResult[importResult](t, r).Title)

	assert.Len(t, a.StudyRecords.Items(), 2)
	assert.Len(t, a.LearningTypes.Items(), 1)
}

func TestImportNoteRejects(t *testing.T) {
	srv, _ := testServer(t)

	cases := []map[string]any{
		{},
		{"content": "# x", "filename": "x.txt"},
		{"url": "data:image/png;base64,AAAA"},
		{"url": "http://127.0.0.1/note.md"},
		{"url": "ftp://example.com/note.md"},
		{"content": "", "url": ""},
	}
	for _, args := range cases {
		r := callTool(t, srv, "import_note", args)
		assert.True(t, r.IsError, "%v", args)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "note.md", sanitizeFilename("../../note.md"))
	assert.Equal(t, "my_note.md", sanitizeFilename("my note.md"))
	assert.Equal(t, "note.md", filenameFromURL("https://example.com/notes/note.md"))
	assert.Contains(t, filenameFromURL("https://example.com/notes/"), ".md")
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_note_contract", nil)
	assert.Contains(t, resultText(r), "learning_type")
	assert.Contains(t, resultText(r), "A title is mandatory")
}
