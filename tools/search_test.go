package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSearchFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"main.go":            "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n",
		"util.go":            "package main\n\nfunc helper() string { return \"hello again\" }\n",
		"notes.txt":          "hello from notes\nsecond line\n",
		"sub/config.yaml":    "mode: prompt\nmax_iterations: 10\n",
		"secret/token.txt":   "hello secret\n",
		".taskpilot/session": "hello state\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestSearchFindsMatches(t *testing.T) {
	dir := writeSearchFixture(t)
	tool := &SearchTool{Base: dir}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern": "hello",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "main.go:4") {
		t.Errorf("expected main.go line 4 in results, got:\n%s", out)
	}
	if !strings.Contains(out, "notes.txt:1") {
		t.Errorf("expected notes.txt line 1 in results, got:\n%s", out)
	}
}

func TestSearchFileGlob(t *testing.T) {
	dir := writeSearchFixture(t)
	tool := &SearchTool{Base: dir}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern":   "hello",
		"file_glob": "*.go",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "main.go") || !strings.Contains(out, "util.go") {
		t.Errorf("expected both .go files in results, got:\n%s", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Errorf("glob must exclude notes.txt, got:\n%s", out)
	}
}

func TestSearchSkipsHiddenPaths(t *testing.T) {
	dir := writeSearchFixture(t)
	tool := &SearchTool{
		Base:   dir,
		Hidden: []string{"**/secret", "**/secret/**", "**/.taskpilot", "**/.taskpilot/**"},
	}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern": "hello",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.Contains(out, "secret") {
		t.Errorf("hidden directory leaked into results:\n%s", out)
	}
	if strings.Contains(out, ".taskpilot") {
		t.Errorf("state directory leaked into results:\n%s", out)
	}
}

func TestSearchSubdirectory(t *testing.T) {
	dir := writeSearchFixture(t)
	tool := &SearchTool{Base: dir}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern": "max_iterations",
		"path":    "sub",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "config.yaml:2") {
		t.Errorf("expected config.yaml line 2, got:\n%s", out)
	}
}

func TestSearchNoMatches(t *testing.T) {
	dir := writeSearchFixture(t)
	tool := &SearchTool{Base: dir}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern": "zzz_not_present",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "No matches") {
		t.Errorf("expected no-match message, got:\n%s", out)
	}
}

func TestSearchResultCap(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("needle line\n")
	}
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tool := &SearchTool{Base: dir, MaxResults: 5}
	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern": "needle",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := strings.Count(out, "needle"); got != 6 { // 5 results + pattern in header
		t.Errorf("expected results capped at 5, got output:\n%s", out)
	}
}

func TestSearchInvalidPattern(t *testing.T) {
	tool := &SearchTool{Base: t.TempDir()}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{
		"pattern": "[",
	}); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestSearchMissingPattern(t *testing.T) {
	tool := &SearchTool{Base: t.TempDir()}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatal("expected error for missing pattern argument")
	}
}
