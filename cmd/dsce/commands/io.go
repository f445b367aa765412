package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/openfroyo/dsce/pkg/discovery"
)

// readPropertiesFromStdin reads a JSON object from stdin when stdin is not
// a terminal (spec §6.3: "read desired/filter JSON from stdin when stdin
// is not a TTY"). A TTY stdin yields an empty property set rather than
// blocking on interactive input.
func readPropertiesFromStdin() (map[string]interface{}, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return map[string]interface{}{}, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return map[string]interface{}{}, nil
	}
	var props map[string]interface{}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("stdin is not a well-formed JSON object: %w", err)
	}
	return props, nil
}

// printJSON writes v to stdout as a single formatted JSON document.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openIndex builds a discovery index rooted at root, using a persistent
// sqlite cache unless --nocache was given.
func openIndex(ctx context.Context, root string, skipCache bool) (*discovery.Index, *discovery.Cache, error) {
	roots := []string{root}

	if skipCache {
		idx, err := discovery.Build(ctx, roots, nil)
		return idx, nil, err
	}

	cachePath := filepath.Join(root, ".dsce-cache.db")
	cache, err := discovery.OpenCache(ctx, cachePath)
	if err != nil {
		return nil, nil, err
	}
	idx, err := discovery.Build(ctx, roots, cache)
	if err != nil {
		cache.Close()
		return nil, nil, err
	}
	return idx, cache, nil
}
