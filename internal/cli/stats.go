package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show engine-wide or per-user statistics",
		Run:   runStatsGlobal,
	}
	statsCmd.Flags().StringP("user", "u", "", "Show stats for one user instead of engine-wide")

	analyticsCmd := &cobra.Command{
		Use:   "session-analytics",
		Short: "Show a user's session/memory distribution",
		Run:   runSessionAnalytics,
	}
	analyticsCmd.Flags().StringP("user", "u", "", "User id (required)")
	analyticsCmd.MarkFlagRequired("user")

	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(analyticsCmd)
}

func runStatsGlobal(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	if userID != "" {
		stats, err := memex.GetUserStats(h, userID)
		if err != nil {
			exitErr("stats", err)
		}
		printJSON(stats)
		return
	}

	stats, err := memex.GetStats(h)
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}

func runSessionAnalytics(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	analytics, err := memex.GetSessionAnalytics(h, userID)
	if err != nil {
		exitErr("session-analytics", err)
	}
	printJSON(analytics)
}
