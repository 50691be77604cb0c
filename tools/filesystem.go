package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nexteleven/eleven/policy"
)

// ViewFileTool reads a file. Reading inside the workspace root is safe;
// anything outside it needs approval. Binary content is flagged, never
// blindly decoded as text.
type ViewFileTool struct {
	restrict pathRestrictions
}

func (t *ViewFileTool) Name() string { return "view_file" }

func (t *ViewFileTool) Description() string {
	return "Reads the content of a text file. Args: path (string)."
}

func (t *ViewFileTool) Parameters() map[string]any {
	return map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Path of the file to read.",
		},
	}
}

func (t *ViewFileTool) Classify(args map[string]any) policy.RiskClass {
	path, ok := stringArg(args, "path")
	if !ok {
		return policy.RiskApproval
	}
	if t.restrict.isHidden(path) {
		return policy.RiskBlocked
	}
	if insideWorkspace(path) {
		return policy.RiskSafe
	}
	return policy.RiskApproval
}

func (t *ViewFileTool) Execute(ctx context.Context, args map[string]any) Result {
	path, ok := stringArg(args, "path")
	if !ok {
		return ErrorResult("missing or invalid 'path' argument")
	}
	if t.restrict.isHidden(path) {
		return ErrorResult("access denied: path %q is hidden", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ErrorResult("failed to read %q: %v", path, err)
	}
	if isBinary(content) {
		return ErrorResult("%q is a binary file (%d bytes); refusing to decode it as text", path, len(content))
	}
	output, truncated := Truncate(string(content), DefaultOutputLimit)
	return Result{Output: output, Truncated: truncated}
}

// WriteFileTool writes a file. Parent directories are created only when
// create_dirs is set, and an existing file is only replaced when overwrite is
// set; the tool never silently clobbers.
type WriteFileTool struct {
	restrict pathRestrictions
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Writes content to a file. Args: path (string), content (string), " +
		"overwrite (bool, required to replace an existing file), " +
		"create_dirs (bool, required to create missing parent directories)."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Path of the file to write.",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "Full content to write.",
		},
		"overwrite": map[string]any{
			"type":        "boolean",
			"description": "Set to true to replace an existing file.",
		},
		"create_dirs": map[string]any{
			"type":        "boolean",
			"description": "Set to true to create missing parent directories.",
		},
	}
}

func (t *WriteFileTool) Classify(args map[string]any) policy.RiskClass {
	if path, ok := stringArg(args, "path"); ok {
		if t.restrict.isHidden(path) || t.restrict.isReadOnly(path) {
			return policy.RiskBlocked
		}
	}
	return policy.RiskApproval
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) Result {
	path, pathOK := stringArg(args, "path")
	if !pathOK {
		return ErrorResult("missing or invalid 'path' argument")
	}
	content, contentOK := args["content"].(string)
	if !contentOK {
		return ErrorResult("missing or invalid 'content' argument")
	}
	if t.restrict.isHidden(path) {
		return ErrorResult("access denied: path %q is hidden", path)
	}
	if t.restrict.isReadOnly(path) {
		return ErrorResult("access denied: path %q is read-only", path)
	}

	if _, err := os.Stat(path); err == nil && !boolArg(args, "overwrite") {
		return ErrorResult("%q already exists; pass overwrite=true to replace it", path)
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if !boolArg(args, "create_dirs") {
			return ErrorResult("parent directory %q does not exist; pass create_dirs=true to create it", dir)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return ErrorResult("failed to create %q: %v", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return ErrorResult("failed to write %q: %v", path, err)
	}
	return Result{Output: fmt.Sprintf("Wrote %d bytes to %s", len(content), path)}
}

// ListDirTool lists a directory. Always safe.
type ListDirTool struct {
	restrict pathRestrictions
}

func (t *ListDirTool) Name() string { return "list_dir" }

func (t *ListDirTool) Description() string {
	return "Lists the entries of a directory. Args: path (string, defaults to the current directory)."
}

func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Directory to list. Defaults to '.'.",
		},
	}
}

func (t *ListDirTool) Classify(args map[string]any) policy.RiskClass {
	return policy.RiskSafe
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) Result {
	path, ok := stringArg(args, "path")
	if !ok {
		path = "."
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return ErrorResult("failed to list %q: %v", path, err)
	}

	var lines []string
	for _, e := range entries {
		if t.restrict.isHidden(filepath.Join(path, e.Name())) {
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	sort.Strings(lines)
	output, truncated := Truncate(strings.Join(lines, "\n"), DefaultOutputLimit)
	return Result{Output: output, Truncated: truncated}
}

// insideWorkspace reports whether path resolves under the current working
// directory.
func insideWorkspace(path string) bool {
	wd, err := os.Getwd()
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// isBinary applies the classic NUL-byte heuristic plus a UTF-8 validity check
// over the leading bytes.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
		// Don't let a multi-byte rune cut at the probe boundary read as
		// invalid UTF-8.
		for i := 0; i < utf8.UTFMax && len(probe) > 0 && !utf8.Valid(probe); i++ {
			probe = probe[:len(probe)-1]
		}
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return true
	}
	return !utf8.Valid(probe)
}
