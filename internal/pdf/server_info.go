package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/descriptions"
	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
)

// FileInfo describes a PDF or layout file in the working directory
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
	Kind         string `json:"kind"` // "pdf" or "layout"
}

// directoryScanner lists workspace files with depth, count and time limits
type directoryScanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
}

func (s *directoryScanner) scan(ctx context.Context, root string) ([]FileInfo, bool) {
	var files []FileInfo
	truncated := false
	start := time.Now()

	var walk func(dir string, depth int)
	walk = func(dir string, depth int) {
		if truncated || ctx.Err() != nil || depth >= s.maxDepth {
			return
		}
		if time.Since(start) > s.timeLimit {
			truncated = true
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") || entry.Type()&os.ModeSymlink != 0 {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				walk(path, depth+1)
				continue
			}

			kind := workspaceKind(entry.Name())
			if kind == "" {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, FileInfo{
				Path:         path,
				Name:         entry.Name(),
				Size:         info.Size(),
				ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
				Kind:         kind,
			})
			if len(files) >= s.fileLimit {
				truncated = true
				return
			}
		}
	}
	walk(root, 0)

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, truncated
}

func workspaceKind(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".yaml", ".yml":
		return "layout"
	case ".json":
		if strings.HasSuffix(strings.ToLower(name), ".layout.json") {
			return "layout"
		}
	}
	return ""
}

// ListWorkspace returns the PDFs and layout files under the working directory
func (s *Service) ListWorkspace(ctx context.Context) ([]FileInfo, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	scanner := &directoryScanner{maxDepth: 3, fileLimit: 100, timeLimit: 3 * time.Second}
	files, truncated := scanner.scan(ctx, s.pathValidator.GetConfiguredDirectory())
	if files == nil {
		files = []FileInfo{}
	}
	return files, truncated
}

// ServerInfo describes the server, the current session and how to use the tools
func (s *Service) ServerInfo(ctx context.Context, serverName, version string) *ServerInfoResult {
	renders := s.store.PageRenders()
	rendered := make([]int, 0, len(renders))
	for p := range renders {
		rendered = append(rendered, p)
	}
	sort.Ints(rendered)

	kinds := make([]string, len(layout.Kinds))
	for i, k := range layout.Kinds {
		kinds[i] = string(k)
	}

	tools := make([]ToolInfo, 0, len(toolUsage))
	for _, name := range descriptions.GetAllToolNames() {
		u := toolUsage[name]
		tools = append(tools, ToolInfo{
			Name:        name,
			Description: firstLine(descriptions.GetToolDescription(name)),
			Usage:       u.usage,
			Parameters:  u.parameters,
		})
	}

	files, truncated := s.ListWorkspace(ctx)

	return &ServerInfoResult{
		ServerName:       serverName,
		Version:          version,
		DefaultDirectory: s.pathValidator.GetConfiguredDirectory(),
		MaxFileSize:      s.maxFileSize,
		DefaultScale:     s.defaultScale,
		OpenDocument:     s.CurrentPath(),
		PlacedFields:     s.store.Len(),
		RenderedPages:    rendered,
		WorkspaceFiles:   files,
		Truncated:        truncated,
		AvailableTools:   tools,
		FieldKinds:       kinds,
		UsageGuidance:    s.usageGuidance(),
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var toolUsage = map[string]struct{ usage, parameters string }{
	"form_open": {
		"Start a session on a source PDF",
		"path (required): PDF path, relative to the working directory or absolute inside it",
	},
	"form_render_page": {
		"Record render info before placing fields on a page",
		"page (required): zero-based page index, scale (optional): 0.5-3, " +
			"width/height (optional): pixel size reported by your own rasterizer",
	},
	"form_place_field": {
		"Add a field at a render-space position",
		"kind (required): Text|Checkbox|Radio, page (required), x (required), y (required)",
	},
	"form_update_field": {
		"Edit a field's geometry or properties",
		"id (required), x, y, width, height, dx, dy, dw, dh, name, description, required, options (comma separated)",
	},
	"form_remove_field":   {"Delete a field", "id (required)"},
	"form_list_fields":    {"Review placed fields", "page (optional): restrict to one page"},
	"form_export":         {"Write the interactive PDF", "output (optional): output path"},
	"form_inspect":        {"List fields embedded in a PDF", "path (optional): defaults to the open document"},
	"form_suggest_fields": {"Get advisory field suggestions", "page (required)"},
	"form_save_layout":    {"Persist the layout", "path (optional): .yaml, .yml or .json"},
	"form_load_layout":    {"Restore a saved layout", "path (required)"},
	"form_server_info":    {"Show this overview", "none"},
}

func (s *Service) usageGuidance() string {
	return `Form Builder Usage Guide:

1. OPEN A DOCUMENT:
   - 'form_open' with a PDF path starts a new session

2. RENDER THE PAGES YOU WORK ON:
   - 'form_render_page' records the page's pixel size at a zoom scale
   - Coordinates you pass afterwards are pixels from the page's top-left corner at that scale
   - Pages without render info are skipped on export

3. PLACE AND EDIT FIELDS:
   - 'form_place_field' adds Text (120x30), Checkbox (24x24) or Radio (24x24) fields
   - 'form_update_field' renames, resizes, moves and marks fields required
   - 'form_suggest_fields' proposes fields from the page text

4. EXPORT:
   - 'form_export' writes <name>-interactive.pdf with fillable AcroForm fields
   - 'form_inspect' verifies the result

5. KEEP YOUR WORK:
   - 'form_save_layout' / 'form_load_layout' persist fields and render info as YAML or JSON

IMPORTANT NOTES:
- Changing the zoom does not move placed fields; their pixel geometry is kept as-is
- Each radio button is exported as its own single-option group
- Files up to ` + fmt.Sprintf("%d", s.maxFileSize/(1024*1024)) + `MB are accepted`
}
