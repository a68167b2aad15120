package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	if _, err := memex.DeleteMemory(h, args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", args[0])
}
