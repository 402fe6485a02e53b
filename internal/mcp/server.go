package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-templates/internal/config"
	"github.com/a3tai/mcp-pdf-templates/internal/descriptions"
	"github.com/a3tai/mcp-pdf-templates/internal/editor"
	"github.com/a3tai/mcp-pdf-templates/internal/generate"
	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/mapping"
	"github.com/a3tai/mcp-pdf-templates/internal/service"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *service.Service
	mcpServer *server.MCPServer
	log       *logger.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *service.Service, log *logger.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   svc,
		mcpServer: mcpServer,
		log:       logger.OrNop(log).With("component", "mcp"),
	}

	s.registerTools()

	return s, nil
}

func tool(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(descriptions.GetToolDescription(name))}, opts...)...)
}

func templateIDArg() mcp.ToolOption {
	return mcp.WithString("template_id", mcp.Required(), mcp.Description("Template id"))
}

func sessionIDArg() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Editor session id returned by editor_open"))
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// Catalog
	s.mcpServer.AddTool(tool("template_list",
		mcp.WithString("category", mcp.Description("Only list templates of this category")),
	), s.handleTemplateList)
	s.mcpServer.AddTool(tool("template_get", templateIDArg()), s.handleTemplateGet)
	s.mcpServer.AddTool(tool("template_render_page",
		templateIDArg(),
		mcp.WithNumber("page", mcp.Description("0-based page index")),
		mcp.WithNumber("scale", mcp.Description("Pixels per PDF point")),
	), s.handleTemplateRenderPage)
	s.mcpServer.AddTool(tool("template_import_forms",
		templateIDArg(),
		mcp.WithBoolean("save", mcp.Description("Save the drafted fields as the template mapping")),
	), s.handleTemplateImportForms)
	s.mcpServer.AddTool(tool("mapping_save",
		templateIDArg(),
		mcp.WithArray("mapping", mcp.Required(), mcp.Description("Fields, as a JSON array or a JSON string")),
	), s.handleMappingSave)

	// Editor
	s.mcpServer.AddTool(tool("editor_open",
		templateIDArg(),
		mcp.WithNumber("scale", mcp.Description("Pixels per PDF point of the editing surface")),
	), s.handleEditorOpen)
	s.mcpServer.AddTool(tool("editor_state", sessionIDArg()), s.handleEditorState)
	s.mcpServer.AddTool(tool("editor_set_page",
		sessionIDArg(),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("0-based page index")),
	), s.handleEditorSetPage)
	s.mcpServer.AddTool(tool("editor_add_field", sessionIDArg()), s.handleEditorAddField)
	s.mcpServer.AddTool(tool("editor_update_field",
		sessionIDArg(),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field id")),
		mcp.WithObject("patch", mcp.Required(), mcp.Description("Properties to change")),
	), s.handleEditorUpdateField)
	s.mcpServer.AddTool(tool("editor_delete_field",
		sessionIDArg(),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field id")),
	), s.handleEditorDeleteField)
	s.mcpServer.AddTool(tool("editor_pointer",
		sessionIDArg(),
		mcp.WithArray("events", mcp.Required(), mcp.Description("Pointer events in order")),
	), s.handleEditorPointer)
	s.mcpServer.AddTool(tool("editor_save", sessionIDArg()), s.handleEditorSave)
	s.mcpServer.AddTool(tool("editor_preview", sessionIDArg()), s.handleEditorPreview)
	s.mcpServer.AddTool(tool("editor_close",
		sessionIDArg(),
		mcp.WithBoolean("save", mcp.Description("Save before closing")),
	), s.handleEditorClose)

	// Generation
	s.mcpServer.AddTool(tool("record_init",
		templateIDArg(),
		mcp.WithObject("prefill", mcp.Description("Known values by data key")),
	), s.handleRecordInit)
	s.mcpServer.AddTool(tool("document_generate",
		templateIDArg(),
		mcp.WithObject("record", mcp.Required(), mcp.Description("Values by data key: strings, or booleans for checkboxes")),
		mcp.WithArray("required", mcp.Description("Data keys that must not be empty")),
	), s.handleDocumentGenerate)
	s.mcpServer.AddTool(tool("document_list",
		mcp.WithString("template_id", mcp.Description("Only list documents of this template")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 50)")),
	), s.handleDocumentList)
	s.mcpServer.AddTool(tool("server_info"), s.handleServerInfo)
}

// Catalog handlers

func (s *Server) handleTemplateList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	result, err := s.service.ListTemplates(ctx, service.ListTemplatesRequest{Category: argString(args, "category")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatTemplateList(result)), nil
}

func (s *Server) handleTemplateGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.service.GetTemplate(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	header := fmt.Sprintf("Template %s (%s): %d page(s), %d field(s), revision %d",
		result.Template.ID, result.Template.Name, result.Template.SourcePageCount, len(result.Mapping), result.Revision)
	return jsonResult(header, result)
}

func (s *Server) handleTemplateRenderPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	page, _ := argNumber(args, "page")
	scale, _ := argNumber(args, "scale")

	result, err := s.service.RenderPage(ctx, service.RenderPageRequest{TemplateID: id, Page: int(page), Scale: scale})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("Page %d of %s (%dx%d px)", result.Page, id, result.PixelWidth, result.PixelHeight)
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(result.PNG), "image/png"), nil
}

func (s *Server) handleTemplateImportForms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.service.ImportForms(ctx, id, argBool(request.GetArguments(), "save"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	header := fmt.Sprintf("Found %d native form widget(s), drafted %d field(s)", len(result.Native), len(result.Draft))
	if result.Saved {
		header += "; saved as the template mapping"
	}
	return jsonResult(header, result)
}

func (s *Server) handleMappingSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var m mapping.Mapping
	if err := decodeArg(request.GetArguments(), "mapping", &m); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.service.SaveMapping(ctx, id, m)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %d field(s) for %s, revision %d", len(result.Mapping), id, result.Revision)), nil
}

// Editor handlers

func (s *Server) handleEditorOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scale, _ := argNumber(request.GetArguments(), "scale")
	st, err := s.service.OpenEditor(ctx, id, scale)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return editorResult(fmt.Sprintf("Opened editor session %s", st.SessionID), st)
}

func (s *Server) handleEditorState(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorState(sid)
	})
}

func (s *Server) handleEditorSetPage(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, ok := argNumber(request.GetArguments(), "page")
	if !ok {
		return mcp.NewToolResultError("page is required"), nil
	}
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorSetPage(sid, int(page))
	})
}

func (s *Server) handleEditorAddField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorAddField(sid)
	})
}

func (s *Server) handleEditorUpdateField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fieldID, err := request.RequireString("field_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var patch editor.FieldPatch
	if err := decodeArg(request.GetArguments(), "patch", &patch); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorUpdateField(sid, fieldID, patch)
	})
}

func (s *Server) handleEditorDeleteField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fieldID, err := request.RequireString("field_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorDeleteField(sid, fieldID)
	})
}

func (s *Server) handleEditorPointer(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var events []editor.PointerEvent
	if err := decodeArg(request.GetArguments(), "events", &events); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorPointer(sid, events)
	})
}

func (s *Server) handleEditorSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorSave(ctx, sid)
	})
}

func (s *Server) handleEditorPreview(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	png, err := s.service.EditorPreview(sid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultImage("Editor preview", base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

func (s *Server) handleEditorClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	save := argBool(request.GetArguments(), "save")
	return s.withSession(request, func(sid string) (*service.EditorState, error) {
		return s.service.EditorClose(ctx, sid, save)
	})
}

func (s *Server) withSession(request mcp.CallToolRequest, fn func(sid string) (*service.EditorState, error)) (*mcp.CallToolResult, error) {
	sid, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := fn(sid)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return editorResult(fmt.Sprintf("Editor session %s", st.SessionID), st)
}

// Generation handlers

func (s *Server) handleRecordInit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var prefill map[string]any
	if _, ok := request.GetArguments()["prefill"]; ok {
		if err := decodeArg(request.GetArguments(), "prefill", &prefill); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	rec, err := s.service.InitRecord(ctx, id, prefill)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(fmt.Sprintf("Default record for %s (%d key(s))", id, len(rec)), rec)
}

func (s *Server) handleDocumentGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	req := generate.SubmitRequest{TemplateID: id}
	if err := decodeArg(args, "record", &req.Record); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := args["required"]; ok {
		if err := decodeArg(args, "required", &req.Required); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	result, err := s.service.Generate(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Generated document %s from %s\n", result.Document.ID, id)
	text += fmt.Sprintf("File: %s (%d bytes)\n", result.FileName, len(result.Data))
	text += fmt.Sprintf("Stored at: %s\n", result.Document.OutputRef)
	if result.DeliveryError != "" {
		text += fmt.Sprintf("\n⚠️  WARNING: the document was recorded but could not be delivered: %s\n", result.DeliveryError)
	} else {
		text += fmt.Sprintf("Delivered to: %s\n", result.Location)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleDocumentList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	limit, _ := argNumber(args, "limit")
	docs, err := s.service.ListDocuments(ctx, argString(args, "template_id"), int(limit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No generated documents found"), nil
	}
	text := fmt.Sprintf("Found %d generated document(s)\n\n", len(docs))
	for i, d := range docs {
		text += fmt.Sprintf("%d. %s\n", i+1, d.ID)
		text += fmt.Sprintf("   Template: %s\n", d.TemplateID)
		text += fmt.Sprintf("   Created: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
		text += fmt.Sprintf("   Output: %s\n", d.OutputRef)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.service.ListTemplates(ctx, service.ListTemplatesRequest{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Data Directory: %s\n", s.config.DataDirectory)
	text += fmt.Sprintf("🗄️  Database: %s, Storage: %s\n", s.config.DBDriver, s.config.Storage)
	if s.config.RemoteGenerator != "" {
		text += fmt.Sprintf("🌐 Remote Generator: %s\n", s.config.RemoteGenerator)
	}
	text += fmt.Sprintf("📄 Templates: %d, Open Editor Sessions: %d\n\n", list.Total, len(s.service.EditorSessions()))

	text += "🛠️  Available Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		desc := descriptions.GetToolDescription(name)
		if i := strings.IndexByte(desc, '\n'); i >= 0 {
			desc = desc[:i]
		}
		text += fmt.Sprintf("• %s: %s\n", name, desc)
	}
	return mcp.NewToolResultText(text), nil
}

// Formatting methods

func (s *Server) formatTemplateList(result *service.ListTemplatesResult) string {
	if result.Total == 0 {
		return "No templates found"
	}
	text := fmt.Sprintf("Found %d template(s)\n\n", result.Total)
	for i, t := range result.Templates {
		text += fmt.Sprintf("%d. %s\n", i+1, t.Name)
		text += fmt.Sprintf("   ID: %s\n", t.ID)
		if t.Category != "" {
			text += fmt.Sprintf("   Category: %s\n", t.Category)
		}
		text += fmt.Sprintf("   Pages: %d, Mapped: %t\n", t.SourcePageCount, t.HasMapping)
		if t.Description != "" {
			text += fmt.Sprintf("   %s\n", t.Description)
		}
	}
	return text
}

func editorResult(header string, st *service.EditorState) (*mcp.CallToolResult, error) {
	header += fmt.Sprintf(" (template %s, page %d/%d, %d field(s), mode %s)",
		st.TemplateID, st.Page+1, st.PageCount, len(st.Fields), st.Mode)
	if st.Save.LastError != "" {
		header += "\n⚠️  Last save failed: " + st.Save.LastError
	}
	return jsonResult(header, st)
}

func jsonResult(header string, v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(header + "\n\n" + string(body)), nil
}

// Argument helpers

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argNumber(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func argBool(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// decodeArg decodes a structured argument into out. Clients that cannot
// send nested JSON may pass it as a string.
func decodeArg(args map[string]any, key string, out any) error {
	raw, ok := args[key]
	if !ok || raw == nil {
		return fmt.Errorf("%s is required", key)
	}
	var data []byte
	if str, isString := raw.(string); isString {
		data = []byte(str)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

// Run serves MCP over standard I/O until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	return s.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// ServeStdio serves MCP over the given streams
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("serving MCP over stdio", "data_dir", s.config.DataDirectory)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(s.log.StdLog())
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// SSEHandler exposes the tools over HTTP server-sent events, for server mode
func (s *Server) SSEHandler(baseURL string) http.Handler {
	return server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))
}
