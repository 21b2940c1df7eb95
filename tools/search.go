package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rfoxall/taskpilot/errors"
)

// DefaultMaxSearchResults caps how many matching lines a single search
// returns to the model.
const DefaultMaxSearchResults = 100

// SearchTool is the built-in lookup capability: regex search over file
// contents under a base directory. Paths matching Hidden patterns are
// never read.
type SearchTool struct {
	Base       string   // defaults to "."
	Hidden     []string // doublestar patterns excluded from results
	MaxResults int      // defaults to DefaultMaxSearchResults
}

func (t *SearchTool) Name() string { return "search_files" }

func (t *SearchTool) Description() string {
	return "Searches file contents under the working directory for a regex pattern. " +
		"Args: pattern (string, regex), path (string, optional subdirectory), " +
		"file_glob (string, optional glob such as *.go or **/*.yaml)."
}

func (t *SearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regex pattern to search for.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to search in, relative to the working directory.",
			},
			"file_glob": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern restricting which files are searched.",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return "", errors.New("missing or invalid 'pattern' argument")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", errors.Wrapf(err, "invalid search pattern '%s'", pattern)
	}

	root := t.Base
	if root == "" {
		root = "."
	}
	if sub, ok := args["path"].(string); ok && sub != "" {
		root = filepath.Join(root, sub)
	}
	fileGlob, _ := args["file_glob"].(string)

	maxResults := t.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxSearchResults
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hidden, err := isPathRestricted(path, t.Hidden)
		if err != nil {
			return err
		}
		if hidden {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if fileGlob != "" {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			matched, err := doublestar.Match(fileGlob, filepath.ToSlash(rel))
			if err != nil {
				return errors.Wrapf(err, "invalid file_glob '%s'", fileGlob)
			}
			if !matched && !matchBase(fileGlob, d.Name()) {
				return nil
			}
		}

		found, err := searchFile(path, re, maxResults-len(matches))
		if err != nil {
			return nil // binary or unreadable files are skipped
		}
		matches = append(matches, found...)
		if len(matches) >= maxResults {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && err != fs.SkipAll {
		return "", errors.Wrapf(err, "search failed")
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No matches for pattern '%s'", pattern), nil
	}
	header := fmt.Sprintf("%d match(es) for pattern '%s':\n", len(matches), pattern)
	return header + strings.Join(matches, "\n"), nil
}

// matchBase lets simple globs like "*.go" match against the file name alone.
func matchBase(glob, name string) bool {
	matched, err := doublestar.Match(glob, name)
	return err == nil && matched
}

func searchFile(path string, re *regexp.Regexp, budget int) ([]string, error) {
	if budget <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var found []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			found = append(found, fmt.Sprintf("%s:%d: %s", path, lineNo, strings.TrimSpace(line)))
			if len(found) >= budget {
				break
			}
		}
	}
	return found, scanner.Err()
}
