// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes studytrack tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/studytrack/internal/app"
	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/store"
)

const noteFormatURI = "studytrack://note-format"

// Server wraps the MCP server with studytrack tools.
type Server struct {
	mcp *server.MCPServer
	app *app.App
}

// New creates a new MCP server with all studytrack tools registered.
func New(a *app.App) *Server {
	s := &Server{app: a}

	s.mcp = server.NewMCPServer(
		"studytrack",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sign_in",
		mcp.WithDescription("Sign in to the study backend. Required before any other tool when the backend enforces sessions."),
		mcp.WithString("email", mcp.Required()),
		mcp.WithString("password", mcp.Required()),
	), s.signIn)

	s.mcp.AddTool(mcp.NewTool("list_learning_types",
		mcp.WithDescription("List learning types, newest first."),
	), s.listLearningTypes)

	s.mcp.AddTool(mcp.NewTool("create_learning_type",
		mcp.WithDescription("Create a learning type (study category)."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("description"),
	), s.createLearningType)

	s.mcp.AddTool(mcp.NewTool("list_study_records",
		mcp.WithDescription("List study records, newest first, optionally for one learning type."),
		mcp.WithNumber("learning_type_id", mcp.Description("Only records of this learning type")),
	), s.listStudyRecords)

	s.mcp.AddTool(mcp.NewTool("create_study_record",
		mcp.WithDescription("Create a study record."),
		mcp.WithString("title", mcp.Required()),
		mcp.WithString("description"),
		mcp.WithString("link", mcp.Description("Source URL")),
		mcp.WithNumber("learning_type_id"),
	), s.createStudyRecord)

	s.mcp.AddTool(mcp.NewTool("list_study_plans",
		mcp.WithDescription("List study plans, newest first."),
	), s.listStudyPlans)

	s.mcp.AddTool(mcp.NewTool("list_issues",
		mcp.WithDescription("List study issues, newest first, optionally by status."),
		mcp.WithString("status", mcp.Enum(string(models.IssuePending), string(models.IssueInProgress), string(models.IssueResolved))),
	), s.listIssues)

	s.mcp.AddTool(mcp.NewTool("get_issue",
		mcp.WithDescription("Read one issue by its issue_id."),
		mcp.WithNumber("id", mcp.Required()),
	), s.getIssue)

	s.mcp.AddTool(mcp.NewTool("create_issue",
		mcp.WithDescription("Record a problem met while studying."),
		mcp.WithString("title", mcp.Required()),
		mcp.WithString("issue_type"),
		mcp.WithString("description"),
		mcp.WithString("status", mcp.Enum(string(models.IssuePending), string(models.IssueInProgress), string(models.IssueResolved))),
		mcp.WithString("priority", mcp.Enum(string(models.IssueHigh), string(models.IssueMedium), string(models.IssueLow))),
	), s.createIssue)

	s.mcp.AddTool(mcp.NewTool("resolve_issue",
		mcp.WithDescription("Mark an issue resolved and record its solution."),
		mcp.WithNumber("id", mcp.Required()),
		mcp.WithString("solution", mcp.Required()),
		mcp.WithString("cause"),
	), s.resolveIssue)

	s.mcp.AddTool(mcp.NewTool("list_stocks",
		mcp.WithDescription("One page (20 rows) of the listed-stock catalogue, ordered by code."),
		mcp.WithNumber("page", mcp.Description("1-based page number")),
	), s.listStocks)

	s.mcp.AddTool(mcp.NewTool("get_weather",
		mcp.WithDescription("Up to three daily weather forecasts for a city."),
		mcp.WithString("city"),
	), s.getWeather)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the Markdown study-note format accepted by import_note. "+
			"Call this before importing notes to ensure correct structure."),
	), s.getNoteContract)

	if a.Inbox != nil {
		s.mcp.AddTool(mcp.NewTool("import_note",
			mcp.WithDescription("Import a Markdown study note as a study record. "+
				"Pass the note as content, or as a url (http/https or a base64 data: URI). "+
				"Read the contract first via get_note_contract or the "+noteFormatURI+" resource."),
			mcp.WithString("content", mcp.Description("Markdown note")),
			mcp.WithString("url", mcp.Description("Where to fetch the note from")),
			mcp.WithString("filename", mcp.Description("Name to file the note under (must end with .md)")),
		), s.importNote)
	}

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Study Note Format",
			mcp.WithResourceDescription("Markdown format of study notes accepted by the inbox."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(apperr.Message(err, "request failed")), nil
}

// listResult renders a store snapshot, or the store's error when the read failed.
func listResult[T models.Entity, C any, P any](s *store.Store[T, C, P]) (*mcp.CallToolResult, error) {
	st := s.Snapshot()
	if st.Error != "" {
		return mcp.NewToolResultError(st.Error), nil
	}
	return jsonResult(st.Items)
}

func (s *Server) signIn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	password, err := req.RequireString("password")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.app.Gateway.SignIn(ctx, email, password)
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("signed in as %s", sess.User.Email)), nil
}

func (s *Server) listLearningTypes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.app.LearningTypes.FetchAll(ctx); err != nil {
		return errorResult(err)
	}
	return listResult(s.app.LearningTypes)
}

func (s *Server) createLearningType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.LearningTypeInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	t, err := s.app.LearningTypes.Create(ctx, in)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(t)
}

func (s *Server) listStudyRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var err error
	if id := req.GetInt("learning_type_id", 0); id > 0 {
		err = store.FetchStudyRecordsByType(ctx, s.app.StudyRecords, int64(id))
	} else {
		err = s.app.StudyRecords.FetchAll(ctx)
	}
	if err != nil {
		return errorResult(err)
	}
	return listResult(s.app.StudyRecords)
}

func (s *Server) createStudyRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.StudyRecordInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	rec, err := s.app.StudyRecords.Create(ctx, in)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rec)
}

func (s *Server) listStudyPlans(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.app.StudyPlans.FetchAll(ctx); err != nil {
		return errorResult(err)
	}
	return listResult(s.app.StudyPlans)
}

func (s *Server) listIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var err error
	if status := req.GetString("status", ""); status != "" {
		err = store.FetchIssuesByStatus(ctx, s.app.Issues, models.IssueStatus(status))
	} else {
		err = s.app.Issues.FetchAll(ctx)
	}
	if err != nil {
		return errorResult(err)
	}
	return listResult(s.app.Issues)
}

func (s *Server) getIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issue, err := s.app.Issues.Get(ctx, int64(id))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(issue)
}

func (s *Server) createIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in models.IssueInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	if in.Status == "" {
		in.Status = models.IssuePending
	}
	if in.Priority == "" {
		in.Priority = models.IssueMedium
	}
	issue, err := s.app.Issues.Create(ctx, in)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(issue)
}

func (s *Server) resolveIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	solution, err := req.RequireString("solution")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status := models.IssueResolved
	patch := models.IssuePatch{
		Status:         &status,
		Solution:       models.Some(solution),
		ResolutionTime: models.Some(time.Now().UTC()),
	}
	if cause := req.GetString("cause", ""); cause != "" {
		patch.Cause = models.Some(cause)
	}
	issue, err := s.app.Issues.Update(ctx, int64(id), patch)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(issue)
}

func (s *Server) listStocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := s.app.Stocks.Page(ctx, req.GetInt("page", 1))
	if page.Error != "" {
		return mcp.NewToolResultError(page.Error), nil
	}
	return jsonResult(page)
}

func (s *Server) getWeather(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.app.Weather.Daily(ctx, req.GetString("city", "")))
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
