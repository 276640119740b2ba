// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the graph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/onto/internal/service"
)

// Server wraps the MCP server with the graph tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *service.Service
	maxDepth int
}

// New creates a new MCP server with all tools registered. maxDepth bounds
// graph_walk.
func New(svc *service.Service, version string, maxDepth int) *Server {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	s := &Server{svc: svc, maxDepth: maxDepth}

	s.mcp = server.NewMCPServer(
		"onto",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("validate",
		mcp.WithDescription("Validate the whole store against its schema and return every issue."),
		mcp.WithBoolean("strict", mcp.Description("Treat warnings as failures")),
	), s.validate)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search instances and relations. Examples: "+
			"'jdoe:', ':Person.email: company', '(:Person)-[:MEMBER_OF]->', "+
			"'-[:MEMBER_OF].role->: lead', 'NOT :Team AND ops'."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query string")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("graph_walk",
		mcp.WithDescription("Breadth-first walk over outgoing edges from an instance."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Start instance id")),
		mcp.WithNumber("depth", mcp.Description("Maximum depth (default 1)")),
	), s.graphWalk)

	s.mcp.AddTool(mcp.NewTool("get_instance",
		mcp.WithDescription("Read one instance with its outgoing edges and backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Instance id")),
	), s.getInstance)

	s.mcp.AddTool(mcp.NewTool("list_instances",
		mcp.WithDescription("List instances ordered by id, optionally of one class."),
		mcp.WithString("class", mcp.Description("Optional class filter")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listInstances)

	s.mcp.AddTool(mcp.NewTool("create_instance",
		mcp.WithDescription("Create a single-instance file. The write is validated against the "+
			"whole store and rolled back on failure. Read the contract first via "+
			"get_format_contract or the "+FormatURI+" resource."),
		mcp.WithString("class", mcp.Required(), mcp.Description("Class name")),
		mcp.WithString("id", mcp.Description("Instance id (a UUID is generated when empty)")),
		mcp.WithString("namespace", mcp.Description("Namespace; also the top-level directory")),
		mcp.WithObject("components", mcp.Description("Local component name -> property -> value")),
		mcp.WithObject("relations", mcp.Description("Relation name -> id, list of ids or {_to, qualifiers}")),
	), s.createInstance)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the raw content of a store file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Store-relative path (e.g. people/jdoe.yaml)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the storage file format contract. "+
			"Call this before creating or updating files."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Storage File Format Contract",
			mcp.WithResourceDescription("Format every schema and instance file must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult renders err for the model. Rejected writes include the
// validation issues so the caller can fix them.
func errorResult(err error) *mcp.CallToolResult {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		out, _ := json.MarshalIndent(map[string]any{
			"error":  "validation failed; the write was rolled back",
			"errors": ve.Report.Errors,
		}, "", "  ")
		return mcp.NewToolResultError(string(out))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) validate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	strict := req.GetBool("strict", false)
	report, passed, err := s.svc.Validate(ctx, strict)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"passed": passed, "report": report}), nil
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SearchHits(ctx, q)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) graphWalk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	depth := req.GetInt("depth", 1)
	if depth < 0 {
		return mcp.NewToolResultError("depth must be non-negative"), nil
	}
	if depth > s.maxDepth {
		depth = s.maxDepth
	}
	view, steps, err := s.svc.Traverse(ctx, id, depth)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"depth": depth, "nodes": view.Nodes, "links": view.Links, "steps": steps}), nil
}

func (s *Server) getInstance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Instance(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(d), nil
}

func (s *Server) listInstances(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}
	offset := req.GetInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	rows, total, err := s.svc.ListInstances(ctx, req.GetString("class", ""), limit, offset)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"instances": rows, "total": total}), nil
}

func (s *Server) createInstance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var in service.CreateInstanceRequest
	if err := json.Unmarshal(raw, &in); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	res, err := s.svc.CreateInstance(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", res.Path)), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.ReadFile(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
