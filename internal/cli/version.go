package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the memex public API version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(memex.Version())
		},
	}
	RootCmd.AddCommand(cmd)
}
