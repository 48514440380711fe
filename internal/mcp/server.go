package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/evidence/internal/aggregate"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/store"
	"github.com/joescharf/evidence/internal/syncer"
	"github.com/joescharf/evidence/internal/tracker"
)

// Generator produces evidence documents.
type Generator interface {
	CreateMonth(ctx context.Context, req aggregate.Request) (*models.Evidence, error)
	CreateYear(ctx context.Context, req aggregate.Request) (*models.YearReport, error)
}

// TemplateLister reads persisted template records.
type TemplateLister interface {
	ListTemplates(ctx context.Context, filter store.TemplateFilter) ([]*models.UserTemplate, error)
}

// SyncRunner runs a Redmine sync.
type SyncRunner interface {
	Run(ctx context.Context, authorization string) (*syncer.Result, error)
}

// Server exposes the evidence pipeline as MCP tools. Tracker credentials
// come from configuration since stdio carries no authorization header.
type Server struct {
	pipeline  Generator
	templates TemplateLister
	sync      SyncRunner
	creds     tracker.Credentials
	version   string
}

// NewServer creates the MCP server wrapper. templates and sr may be nil.
func NewServer(gen Generator, templates TemplateLister, sr SyncRunner, creds tracker.Credentials, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{
		pipeline:  gen,
		templates: templates,
		sync:      sr,
		creds:     creds,
		version:   version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("evidence", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.createMonthTool())
	srv.AddTool(s.createYearTool())
	srv.AddTool(s.listTemplatesTool())
	srv.AddTool(s.redmineSyncTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

func monthOptions(monthDesc string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("month", mcp.Required(), mcp.Description(monthDesc)),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Four-digit year")),
		mcp.WithString("jira_username", mcp.Description("Jira assignee; enables the Jira source")),
		mcp.WithNumber("redmine_assignee_id", mcp.Description("Redmine assigned_to_id; enables the Redmine source")),
		mcp.WithBoolean("redmine_from_store", mcp.Description("Read Redmine issues from the local store instead of the API")),
	}
}

// buildRequest reads the month arguments. With no source arguments the
// Jira source is used with the configured username.
func (s *Server) buildRequest(request mcp.CallToolRequest) (aggregate.Request, error) {
	month, err := request.RequireInt("month")
	if err != nil {
		return aggregate.Request{}, err
	}
	year, err := request.RequireInt("year")
	if err != nil {
		return aggregate.Request{}, err
	}
	req := aggregate.Request{Month: month, Year: year, Credentials: s.creds}

	if u := request.GetString("jira_username", ""); u != "" {
		req.Jira = &aggregate.JiraParams{Username: u}
	}
	if id := request.GetInt("redmine_assignee_id", 0); id > 0 {
		req.Redmine = &aggregate.RedmineParams{
			AssignedToID: id,
			FromStore:    request.GetBool("redmine_from_store", false),
		}
	}
	if req.Jira == nil && req.Redmine == nil {
		if s.creds.Empty() {
			return aggregate.Request{}, fmt.Errorf("no source given and auth.username is not configured")
		}
		req.Jira = &aggregate.JiraParams{Username: s.creds.Username}
	}
	return req, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// evidence_create_month
func (s *Server) createMonthTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Generate the evidence document for one month. Returns the evidence summary with the document path."),
	}, monthOptions("Month number 1-12")...)
	return mcp.NewTool("evidence_create_month", opts...), s.handleCreateMonth
}

func (s *Server) handleCreateMonth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.buildRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := s.pipeline.CreateMonth(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create evidence: %v", err)), nil
	}
	return jsonResult(ev)
}

// evidence_create_year
func (s *Server) createYearTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Generate evidence documents for January through the given month. Failed months are reported, not fatal."),
	}, monthOptions("Last month to generate, 1-12")...)
	return mcp.NewTool("evidence_create_year", opts...), s.handleCreateYear
}

func (s *Server) handleCreateYear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.buildRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.pipeline.CreateYear(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create year: %v", err)), nil
	}
	return jsonResult(report)
}

// evidence_list_templates
func (s *Server) listTemplatesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("evidence_list_templates",
		mcp.WithDescription("List generated evidence documents for the configured user, most recent first."),
		mcp.WithNumber("year", mcp.Description("Filter by year")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records")),
	)
	return tool, s.handleListTemplates
}

func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.templates == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	templates, err := s.templates.ListTemplates(ctx, store.TemplateFilter{
		Username: s.creds.Username,
		Year:     request.GetInt("year", 0),
		Limit:    request.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list templates: %v", err)), nil
	}
	if templates == nil {
		templates = []*models.UserTemplate{}
	}
	return jsonResult(templates)
}

// redmine_sync
func (s *Server) redmineSyncTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("redmine_sync",
		mcp.WithDescription("Fetch every Redmine issue page and upsert the records into the local store. Returns counts."),
	)
	return tool, s.handleRedmineSync
}

func (s *Server) handleRedmineSync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.sync == nil {
		return mcp.NewToolResultError("redmine sync is not configured"), nil
	}
	res, err := s.sync.Run(ctx, s.creds.Authorization())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("redmine sync failed: %v", err)), nil
	}
	return jsonResult(res)
}
