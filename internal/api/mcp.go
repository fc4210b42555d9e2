package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/jobboard/internal/listing"
	"github.com/kalambet/jobboard/internal/session"
	"github.com/kalambet/jobboard/internal/storage"
	"github.com/kalambet/jobboard/internal/watchlist"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Repo       storage.Repository
	Hub        *watchlist.Hub
	Categories listing.Categories
}

// criteriaArgs are the search_jobs arguments, in Criteria field order.
var criteriaArgs = []struct{ name, desc string }{
	{"employment_type", "Employment type, e.g. Full-time"},
	{"location", "Exact location"},
	{"min_salary", "Minimum annual salary"},
	{"max_salary", "Maximum annual salary"},
	{"company", "Exact company name"},
	{"category", "Category name from jobboard://categories"},
	{"keyword", "Substring of the job title"},
}

// NewMCPServer creates an MCP server with the job board tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Categories.Entries == nil {
		deps.Categories = listing.DefaultCategories
	}

	s := server.NewMCPServer(
		"jobboard",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("jobboard: search job postings and manage a user's watch list."),
		server.WithRecovery(),
	)

	searchOpts := []mcp.ToolOption{
		mcp.WithDescription("Search job postings. All arguments are optional and combine with AND."),
	}
	for _, a := range criteriaArgs {
		searchOpts = append(searchOpts, mcp.WithString(a.name, mcp.Description(a.desc)))
	}
	s.AddTool(mcp.NewTool("search_jobs", searchOpts...), mcpSearchJobs(deps))

	s.AddTool(
		mcp.NewTool("toggle_watch",
			mcp.WithDescription("Watch a job posting for a user, or stop watching it if already watched."),
			mcp.WithString("user_id", mcp.Description("User id"), mcp.Required()),
			mcp.WithString("job_id", mcp.Description("Posting id"), mcp.Required()),
		),
		mcpToggleWatch(deps),
	)

	s.AddTool(
		mcp.NewTool("list_watched",
			mcp.WithDescription("List the postings a user is watching."),
			mcp.WithString("user_id", mcp.Description("User id"), mcp.Required()),
		),
		mcpListWatched(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"jobboard://categories",
			"Job Categories",
			mcp.WithResourceDescription("Category table with the job titles in each category"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCategories(deps),
	)

	return s
}

func mcpSearchJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c := listing.Criteria{
			EmploymentType: req.GetString("employment_type", ""),
			Location:       req.GetString("location", ""),
			MinSalary:      req.GetString("min_salary", ""),
			MaxSalary:      req.GetString("max_salary", ""),
			Company:        req.GetString("company", ""),
			Category:       req.GetString("category", ""),
			Keyword:        req.GetString("keyword", ""),
		}

		postings, err := deps.Repo.ListPostings(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing postings failed: %v", err)), nil
		}
		result := listing.Filter(postings, c.Normalize(deps.Categories), deps.Categories)
		if len(result) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpToggleWatch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		jobID, err := req.RequireString("job_id")
		if err != nil {
			return mcpError("job_id is required"), nil
		}

		sess := session.New(userID)
		syncer, release, err := deps.Hub.Acquire(sess)
		if err != nil {
			return mcpError(fmt.Sprintf("watch list unavailable: %v", err)), nil
		}
		defer release()

		outcome := syncer.Toggle(ctx, sess, jobID)
		if outcome == watchlist.Failed {
			return mcpError(fmt.Sprintf("failed to toggle watch on %s", jobID)), nil
		}
		return mcpText(fmt.Sprintf("%s %s", jobID, outcome)), nil
	}
}

func mcpListWatched(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		syncer, release, err := deps.Hub.Acquire(session.New(userID))
		if err != nil {
			return mcpError(fmt.Sprintf("watch list unavailable: %v", err)), nil
		}
		defer release()

		waitCtx, cancel := context.WithTimeout(ctx, initialLoadTimeout)
		defer cancel()
		if err := syncer.Wait(waitCtx); err != nil {
			return mcpError(fmt.Sprintf("watch list not loaded: %v", err)), nil
		}

		items := syncer.List()
		if len(items) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(items)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal watch list: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceCategories(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Categories)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal categories: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
