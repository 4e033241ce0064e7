package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/config"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/descriptions"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/pdf"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pdf.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pdf.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool list never changes at runtime
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	desc := descriptions.GetToolDescription

	s.mcpServer.AddTool(mcp.NewTool("form_open",
		mcp.WithDescription(desc("form_open")),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("Path to the source PDF, relative to the working directory")),
	), s.handleOpen)

	s.mcpServer.AddTool(mcp.NewTool("form_render_page",
		mcp.WithDescription(desc("form_render_page")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Zero-based page index")),
		mcp.WithNumber("scale", mcp.Description("Pixels per PDF point, 0.5-3 (defaults to the server's scale)")),
		mcp.WithNumber("width", mcp.Description("Rendered width in pixels, when you rasterized the page yourself")),
		mcp.WithNumber("height", mcp.Description("Rendered height in pixels, when you rasterized the page yourself")),
	), s.handleRenderPage)

	s.mcpServer.AddTool(mcp.NewTool("form_place_field",
		mcp.WithDescription(desc("form_place_field")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Field kind: Text, Checkbox or Radio")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Zero-based page index")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Left edge in render-space pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Top edge in render-space pixels")),
	), s.handlePlaceField)

	s.mcpServer.AddTool(mcp.NewTool("form_update_field",
		mcp.WithDescription(desc("form_update_field")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Field id")),
		mcp.WithNumber("x", mcp.Description("New left edge")),
		mcp.WithNumber("y", mcp.Description("New top edge")),
		mcp.WithNumber("width", mcp.Description("New width (minimum 20)")),
		mcp.WithNumber("height", mcp.Description("New height (minimum 20)")),
		mcp.WithNumber("dx", mcp.Description("Move right by this many pixels")),
		mcp.WithNumber("dy", mcp.Description("Move down by this many pixels")),
		mcp.WithNumber("dw", mcp.Description("Grow the width by this many pixels")),
		mcp.WithNumber("dh", mcp.Description("Grow the height by this many pixels")),
		mcp.WithString("name", mcp.Description("Field name written to the PDF")),
		mcp.WithString("description", mcp.Description("Tooltip shown by PDF viewers")),
		mcp.WithBoolean("required", mcp.Description("Whether the field must be filled in")),
		mcp.WithString("options", mcp.Description("Comma separated options; the first is a radio's export value")),
	), s.handleUpdateField)

	s.mcpServer.AddTool(mcp.NewTool("form_remove_field",
		mcp.WithDescription(desc("form_remove_field")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Field id")),
	), s.handleRemoveField)

	s.mcpServer.AddTool(mcp.NewTool("form_list_fields",
		mcp.WithDescription(desc("form_list_fields")),
		mcp.WithNumber("page", mcp.Description("Only list fields on this zero-based page")),
	), s.handleListFields)

	s.mcpServer.AddTool(mcp.NewTool("form_export",
		mcp.WithDescription(desc("form_export")),
		mcp.WithString("output", mcp.Description("Output path (defaults to <name>-interactive.pdf)")),
	), s.handleExport)

	s.mcpServer.AddTool(mcp.NewTool("form_inspect",
		mcp.WithDescription(desc("form_inspect")),
		mcp.WithString("path", mcp.Description("PDF to inspect (defaults to the open document)")),
	), s.handleInspect)

	s.mcpServer.AddTool(mcp.NewTool("form_suggest_fields",
		mcp.WithDescription(desc("form_suggest_fields")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Zero-based page index")),
	), s.handleSuggestFields)

	s.mcpServer.AddTool(mcp.NewTool("form_save_layout",
		mcp.WithDescription(desc("form_save_layout")),
		mcp.WithString("path", mcp.Description("Layout file (.yaml, .yml or .json)")),
	), s.handleSaveLayout)

	s.mcpServer.AddTool(mcp.NewTool("form_load_layout",
		mcp.WithDescription(desc("form_load_layout")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Layout file (.yaml, .yml or .json)")),
	), s.handleLoadLayout)

	s.mcpServer.AddTool(mcp.NewTool("form_server_info",
		mcp.WithDescription(desc("form_server_info")),
	), s.handleServerInfo)
}

// Argument helpers

func requirePage(request mcp.CallToolRequest) (int, error) {
	v, err := request.RequireFloat("page")
	if err != nil {
		return 0, err
	}
	return toPage(v)
}

// maxPageArg bounds page arguments well inside the int range on every platform
const maxPageArg = math.MaxInt32

func toPage(v float64) (int, error) {
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("page must be a whole number, got %v", v)
	}
	if v < -maxPageArg || v > maxPageArg {
		return 0, fmt.Errorf("page %v is out of range", v)
	}
	return int(v), nil
}

func optionalFloat(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, false, fmt.Errorf("argument %q must be a number", key)
	}
	return v, true, nil
}

func optionalString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

func splitOptions(s string) []string {
	options := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			options = append(options, part)
		}
	}
	return options
}

// Handler functions

func (s *Server) handleOpen(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.OpenFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Opened %s\n", result.Path)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	for i, size := range result.PageSizes {
		text += fmt.Sprintf("  Page %d: %.2f x %.2f pt\n", i, size.Width, size.Height)
	}
	if result.Encrypted {
		text += fmt.Sprintf("Encrypted: yes (%s)\n", result.Permissions)
	}
	if result.ExistingFields > 0 {
		text += fmt.Sprintf("\n⚠️  The document already has %d form field(s); new fields are added alongside them.\n",
			result.ExistingFields)
	}
	text += "\nNext: call 'form_render_page' for each page you want to place fields on."

	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRenderPage(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	scale, _, err := optionalFloat(args, "scale")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	width, hasWidth, err := optionalFloat(args, "width")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	height, hasHeight, err := optionalFloat(args, "height")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result *pdf.RenderResult
	switch {
	case hasWidth != hasHeight:
		return mcp.NewToolResultError("width and height must be given together"), nil
	case hasWidth:
		if scale == 0 {
			scale = s.service.DefaultScale()
		}
		result, err = s.service.RecordRender(page, width, height, scale)
	default:
		result, err = s.service.RenderPage(page, scale)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Page %d rendered at scale %v: %.0f x %.0f px\n",
		result.PageIndex, result.Scale, result.Width, result.Height)
	if result.FieldsOnPage > 0 {
		text += fmt.Sprintf("%d field(s) already on this page keep their pixel position and size.\n",
			result.FieldsOnPage)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePlaceField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := request.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := request.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	field, err := s.service.PlaceField(kind, page, x, y)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Placed field\n" + formatField(field)), nil
}

func (s *Server) handleUpdateField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	var u layout.FieldUpdate
	for key, dst := range map[string]**float64{"x": &u.X, "y": &u.Y, "width": &u.Width, "height": &u.Height} {
		v, ok, err := optionalFloat(args, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if ok {
			*dst = &v
		}
	}
	if v, ok := optionalString(args, "name"); ok {
		u.Name = &v
	}
	if v, ok := optionalString(args, "description"); ok {
		u.Description = &v
	}
	if v, ok := args["required"].(bool); ok {
		u.Required = &v
	}
	if v, ok := optionalString(args, "options"); ok {
		u.Options = splitOptions(v)
	}

	var deltas [4]float64
	for i, key := range []string{"dx", "dy", "dw", "dh"} {
		v, _, err := optionalFloat(args, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		deltas[i] = v
	}

	if u.IsEmpty() && deltas == [4]float64{} {
		return mcp.NewToolResultError("nothing to update: pass at least one property"), nil
	}

	field, err := s.service.Store().Field(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !u.IsEmpty() {
		if field, err = s.service.UpdateField(id, u); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if deltas[0] != 0 || deltas[1] != 0 {
		if field, err = s.service.MoveField(id, deltas[0], deltas[1]); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if deltas[2] != 0 || deltas[3] != 0 {
		if field, err = s.service.ResizeField(id, deltas[2], deltas[3]); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if err := s.service.SelectField(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Updated field\n" + formatField(field)), nil
}

func (s *Server) handleRemoveField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.service.RemoveField(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed field %s (%d remaining)", id, s.service.Store().Len())), nil
}

func (s *Server) handleListFields(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.service.CurrentPath() == "" {
		return mcp.NewToolResultError(pdf.ErrNoDocument.Error()), nil
	}

	pageIndex := -1
	v, ok, err := optionalFloat(request.GetArguments(), "page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok {
		if pageIndex, err = toPage(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return mcp.NewToolResultText(s.formatFieldList(s.service.Fields(pageIndex), pageIndex)), nil
}

func (s *Server) handleExport(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, _ := optionalString(request.GetArguments(), "output")

	result, err := s.service.Export(output)
	if err != nil {
		if errors.Is(err, pdf.ErrExportInProgress) {
			return mcp.NewToolResultError("another export is still running; try again when it finishes"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatExportResult(result)), nil
}

func (s *Server) handleInspect(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := optionalString(request.GetArguments(), "path")

	result, err := s.service.Inspect(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(result.Fields) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No form fields found in %s", result.Path)), nil
	}

	text := fmt.Sprintf("Form fields in %s (%d):\n", result.Path, len(result.Fields))
	for i, f := range result.Fields {
		text += fmt.Sprintf("%d. %s [%s] page %d at (%.2f, %.2f) %.2f x %.2f pt",
			i+1, f.Name, f.Type, f.PageIndex, f.Rect.X, f.Rect.Y, f.Rect.Width, f.Rect.Height)
		if f.Required {
			text += " required"
		}
		if f.ReadOnly {
			text += " read-only"
		}
		if len(f.States) > 0 {
			text += fmt.Sprintf(" states=%s", strings.Join(f.States, "|"))
		}
		if f.Tooltip != "" {
			text += fmt.Sprintf(" tooltip=%q", f.Tooltip)
		}
		text += "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSuggestFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Suggest(ctx, page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(result.Suggestions) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No field suggestions for page %d", page)), nil
	}

	text := fmt.Sprintf("Suggested fields for page %d (advisory, nothing was placed):\n", page)
	for i, sg := range result.Suggestions {
		text += fmt.Sprintf("%d. %s [%s]: %s\n", i+1, sg.Name, sg.Kind, sg.Reason)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleSaveLayout(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := optionalString(request.GetArguments(), "path")

	result, err := s.service.SaveLayout(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %d field(s) and %d page render(s) to %s (%s)",
		result.Fields, result.Pages, result.Path, result.Format)), nil
}

func (s *Server) handleLoadLayout(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.LoadLayout(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Loaded %d field(s) and %d page render(s) from %s",
		result.Fields, result.Pages, result.Path)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.service.ServerInfo(ctx, s.config.ServerName, s.config.Version)
	return mcp.NewToolResultText(formatServerInfoResult(result)), nil
}

// Formatting methods

func formatField(f layout.Field) string {
	text := fmt.Sprintf("  id: %s\n", f.ID)
	text += fmt.Sprintf("  kind: %s, page: %d\n", f.Kind, f.PageIndex)
	text += fmt.Sprintf("  position: (%.1f, %.1f) px, size: %.1f x %.1f px\n", f.X, f.Y, f.Width, f.Height)
	text += fmt.Sprintf("  name: %s, required: %t\n", f.Name, f.Required)
	if f.Description != "" {
		text += fmt.Sprintf("  description: %s\n", f.Description)
	}
	if len(f.Options) > 0 {
		text += fmt.Sprintf("  options: %s\n", strings.Join(f.Options, ", "))
	}
	return text
}

func (s *Server) formatFieldList(fields []layout.Field, pageIndex int) string {
	renders := s.service.Store().PageRenders()

	var text string
	if pageIndex >= 0 {
		text = fmt.Sprintf("%d field(s) on page %d", len(fields), pageIndex)
		if r, ok := renders[pageIndex]; ok {
			text += fmt.Sprintf(" (rendered at scale %v, %.0f x %.0f px)\n", r.Scale, r.Width, r.Height)
		} else {
			text += " (no render info; these fields will be skipped on export)\n"
		}
	} else {
		text = fmt.Sprintf("%d placed field(s), %d rendered page(s)\n", len(fields), len(renders))
	}

	selected, hasSelection := s.service.Store().Selected()
	for i, f := range fields {
		marker := ""
		if hasSelection && f.ID == selected.ID {
			marker = " (selected)"
		}
		text += fmt.Sprintf("\n%d.%s\n%s", i+1, marker, formatField(f))
		if _, ok := renders[f.PageIndex]; !ok && pageIndex < 0 {
			text += "  ⚠️  page has no render info\n"
		}
	}
	return text
}

func formatExportResult(result *pdf.ExportResult) string {
	text := fmt.Sprintf("Export complete: %s\n", result.Summary)
	text += fmt.Sprintf("Output: %s (%d bytes)\n", result.OutputPath, result.Size)

	if len(result.Fields) > 0 {
		text += "\nFields:\n"
		for i, f := range result.Fields {
			text += fmt.Sprintf("%d. %s [%s] page %d at (%.2f, %.2f) %.2f x %.2f pt\n",
				i+1, f.Name, f.Kind, f.PageIndex, f.Rect.X, f.Rect.Y, f.Rect.Width, f.Rect.Height)
		}
	}
	if len(result.Skipped) > 0 {
		text += "\n⚠️  Skipped:\n"
		for _, sp := range result.Skipped {
			text += fmt.Sprintf("  page %d: %d field(s), %s\n", sp.PageIndex, len(sp.FieldIDs), sp.Reason)
		}
	}
	return text
}

func formatServerInfoResult(result *pdf.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Working Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🔍 Default Scale: %v\n\n", result.DefaultScale)

	if result.OpenDocument != "" {
		text += fmt.Sprintf("📄 Open Document: %s\n", result.OpenDocument)
		text += fmt.Sprintf("   Placed fields: %d, rendered pages: %v\n\n", result.PlacedFields, result.RenderedPages)
	} else {
		text += "📄 Open Document: none\n\n"
	}

	if len(result.WorkspaceFiles) > 0 {
		text += fmt.Sprintf("📂 Workspace (%d files found):\n", len(result.WorkspaceFiles))
		for i, file := range result.WorkspaceFiles {
			if i >= 10 {
				text += fmt.Sprintf("   ... and %d more files\n", len(result.WorkspaceFiles)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s [%s] (%d bytes)\n", i+1, file.Name, file.Kind, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Workspace: no PDFs or layouts found\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += fmt.Sprintf("\n🧩 Field kinds: %s\n", strings.Join(result.FieldKinds, ", "))
	text += "\n" + result.UsageGuidance

	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting form builder in stdio mode")
		log.Printf("Working directory: %s", s.config.WorkDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE until ctx is canceled
func (s *Server) runServerMode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("server not started: %w", err)
	}

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(s.config.BaseURL()))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting form builder SSE server on %s", s.config.Address())
		log.Printf("Working directory: %s", s.config.WorkDirectory)
		errCh <- sseServer.Start(s.config.Address())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Printf("Shutting down SSE server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down SSE server: %w", err)
		}
		return ctx.Err()
	}
}
