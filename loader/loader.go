package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sqlbridge/sqlbridge"
)

// Loader resolves named queries from JSON files under a search root and
// rewrites their placeholders for the target engine.
type Loader struct {
	dir    string
	engine sqlbridge.Engine
	tokens []string
}

// New creates a loader rooted at dir. tokens lists the generic placeholder
// tokens (e.g. "%s", "?") to rewrite into the engine's native syntax; an
// empty list leaves queries untouched for engines without numbered markers.
func New(dir string, engine sqlbridge.Engine, tokens []string) *Loader {
	return &Loader{dir: dir, engine: engine, tokens: tokens}
}

// Dir returns the loader's search root.
func (l *Loader) Dir() string {
	return l.dir
}

// Load resolves the query named by the dotted key from the given query
// file. The ".json" suffix is appended unless filename already carries it.
// A value ending in ".sql" names a file relative to the search root whose
// content is substituted in. The result is rewritten for the target engine.
//
// A missing file yields a wrapped not-found error; a missing key yields
// ErrQueryNotFound.
func (l *Loader) Load(filename, key string) (string, error) {
	if !strings.Contains(filename, ".json") {
		filename += ".json"
	}
	path := filepath.Join(l.dir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading query file %s: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing query file %s: %w", path, err)
	}

	value, ok := deepGet(doc, key)
	if !ok {
		return "", fmt.Errorf("%w: %s", sqlbridge.ErrQueryNotFound, key)
	}

	query, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", sqlbridge.ErrQueryNotFound, key)
	}

	if strings.HasSuffix(query, ".sql") {
		sqlPath := filepath.Join(l.dir, query)
		content, err := os.ReadFile(sqlPath)
		if err != nil {
			return "", fmt.Errorf("reading SQL file %s: %w", sqlPath, err)
		}
		query = string(content)
	}

	return sqlbridge.RewriteFor(l.engine, query, l.tokens), nil
}

// deepGet walks nested objects along a dotted key.
func deepGet(doc map[string]any, dottedKey string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(dottedKey, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
