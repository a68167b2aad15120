package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Apply a partial update to a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("content", "", "New content")
	cmd.Flags().Float64("importance", -1, "New importance in [0,1]")
	cmd.Flags().Int("ttl-hours", -1, "New ttl_hours (0 clears the TTL)")
	cmd.Flags().String("meta", "", "Replacement JSON metadata object")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	patch := map[string]any{}

	if v, _ := cmd.Flags().GetString("content"); v != "" {
		patch["content"] = v
	}
	if cmd.Flags().Changed("importance") {
		v, _ := cmd.Flags().GetFloat64("importance")
		patch["importance"] = v
	}
	if cmd.Flags().Changed("ttl-hours") {
		v, _ := cmd.Flags().GetInt("ttl-hours")
		patch["ttl_hours"] = v
	}
	if v, _ := cmd.Flags().GetString("meta"); v != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(v), &meta); err != nil {
			exitErr("decode --meta", err)
		}
		patch["metadata"] = meta
	}
	if len(patch) == 0 {
		exitErr("update", fmt.Errorf("at least one of --content, --importance, --ttl-hours, --meta is required"))
	}

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		exitErr("encode patch", err)
	}

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	m, err := memex.UpdateMemory(h, args[0], patchJSON)
	if err != nil {
		exitErr("update", err)
	}
	printJSON(m)
}
