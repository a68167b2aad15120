package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runSave,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("session", "s", "", "Session id (required)")
	cmd.Flags().Float64P("importance", "i", 0.5, "Importance in [0,1]")
	cmd.Flags().Int("ttl-hours", 0, "Time-to-live in hours (0 means no TTL)")
	cmd.Flags().String("meta", "", "JSON metadata object")

	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("session")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	sessionID, _ := cmd.Flags().GetString("session")
	importance, _ := cmd.Flags().GetFloat64("importance")
	ttlHours, _ := cmd.Flags().GetInt("ttl-hours")
	metaStr, _ := cmd.Flags().GetString("meta")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("save", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	var ttl *int
	if ttlHours > 0 {
		ttl = &ttlHours
	}

	var metaJSON []byte
	if metaStr != "" {
		metaJSON = []byte(metaStr)
	}

	id, err := memex.Save(h, userID, sessionID, strings.TrimSpace(content), importance, ttl, metaJSON)
	if err != nil {
		exitErr("save", err)
	}
	fmt.Println(id)
}
