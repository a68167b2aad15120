package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Fetch a memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	m, err := memex.GetMemory(h, args[0])
	if err != nil {
		exitErr("get", err)
	}
	printJSON(m)
}
