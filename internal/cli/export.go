package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every memory belonging to a user as JSON",
		Run:   runExport,
	}
	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	memories, err := memex.ExportUserMemories(h, userID)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(memories)
}
