package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Session management",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		Run:   runSessionCreate,
	}
	createCmd.Flags().StringP("user", "u", "", "User id (required)")
	createCmd.Flags().StringP("name", "n", "", "Session name")
	createCmd.MarkFlagRequired("user")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's sessions",
		Run:   runSessionList,
	}
	listCmd.Flags().StringP("user", "u", "", "User id (required)")
	listCmd.Flags().IntP("limit", "l", 50, "Max results")
	listCmd.Flags().Int("offset", 0, "Result offset")
	listCmd.MarkFlagRequired("user")

	summaryCmd := &cobra.Command{
		Use:   "summarize [id]",
		Short: "Summarize a session's contents",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionSummarize,
	}

	searchCmd := &cobra.Command{
		Use:   "search [keywords...]",
		Short: "Search a user's sessions by keyword",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSessionSearch,
	}
	searchCmd.Flags().StringP("user", "u", "", "User id (required)")
	searchCmd.MarkFlagRequired("user")

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionDelete,
	}
	deleteCmd.Flags().Bool("cascade", false, "Delete the session's memories too")

	sessionCmd.AddCommand(createCmd, listCmd, summaryCmd, searchCmd, deleteCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionCreate(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	s, err := memex.CreateSession(h, userID, name)
	if err != nil {
		exitErr("session create", err)
	}
	printJSON(s)
}

func runSessionList(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	page, err := memex.GetUserSessions(h, userID, limit, offset)
	if err != nil {
		exitErr("session list", err)
	}
	printJSON(page)
}

func runSessionSummarize(cmd *cobra.Command, args []string) {
	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	summary, err := memex.SummarizeSession(h, args[0])
	if err != nil {
		exitErr("session summarize", err)
	}
	printJSON(summary)
}

func runSessionSearch(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	keywordsJSON, err := json.Marshal(args)
	if err != nil {
		exitErr("encode keywords", err)
	}

	sessions, err := memex.SearchSessions(h, userID, keywordsJSON)
	if err != nil {
		exitErr("session search", err)
	}
	printJSON(sessions)
}

func runSessionDelete(cmd *cobra.Command, args []string) {
	cascade, _ := cmd.Flags().GetBool("cascade")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	if _, err := memex.DeleteSession(h, args[0], cascade); err != nil {
		exitErr("session delete", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", args[0])
}
