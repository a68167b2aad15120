// Package cli implements the memexctl admin CLI. It is a thin cobra
// wrapper around the public API package, calling the exported
// github.com/rcliao/memex operations directly rather than any storage
// layer of its own.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memexctl",
	Short: "Admin CLI for the memex local-first memory engine",
	Long:  "memexctl exercises the memex public API directly: save, recall, search, decay, and inspect a memex database from the command line.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMEX_DB or ./memex.db)")
}

func resolveDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("MEMEX_DB"); env != "" {
		return env
	}
	return "./memex.db"
}

// openHandle opens an engine handle against the resolved database path
// with every other config default applied, and returns a cleanup function
// that releases it.
func openHandle() (memex.Handle, func(), error) {
	cfg, err := json.Marshal(map[string]any{"database_path": resolveDBPath()})
	if err != nil {
		return 0, nil, err
	}
	h, err := memex.Init(cfg)
	if err != nil {
		return 0, nil, err
	}
	return h, func() { memex.Destroy(h) }, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(raw []byte) {
	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err == nil {
		b, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(b))
		return
	}
	var prettyList []any
	if err := json.Unmarshal(raw, &prettyList); err == nil {
		b, _ := json.MarshalIndent(prettyList, "", "  ")
		fmt.Println(string(b))
		return
	}
	fmt.Println(string(raw))
}

