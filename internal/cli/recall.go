package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
	"github.com/rcliao/memex/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Recall memories matching a filter",
		Run:   runRecall,
	}

	cmd.Flags().StringP("user", "u", "", "Filter by user id")
	cmd.Flags().StringP("session", "s", "", "Filter by session id")
	cmd.Flags().StringP("keywords", "k", "", "Comma-separated free-text keywords")
	cmd.Flags().Float64("min-importance", 0, "Lower bound on importance")
	cmd.Flags().IntP("limit", "l", model.DefaultLimit, "Max results")
	cmd.Flags().Int("offset", 0, "Result offset")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	sessionID, _ := cmd.Flags().GetString("session")
	keywordsStr, _ := cmd.Flags().GetString("keywords")
	minImportance, _ := cmd.Flags().GetFloat64("min-importance")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	filter := model.QueryFilter{
		UserID:    userID,
		SessionID: sessionID,
		Limit:     limit,
		Offset:    offset,
	}
	if keywordsStr != "" {
		for _, k := range strings.Split(keywordsStr, ",") {
			k = strings.TrimSpace(k)
			if k != "" {
				filter.Keywords = append(filter.Keywords, k)
			}
		}
	}
	if minImportance > 0 {
		filter.MinImportance = &minImportance
	}

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		exitErr("encode filter", err)
	}

	page, err := memex.Recall(h, filterJSON)
	if err != nil {
		exitErr("recall", err)
	}
	printJSON(page)
}

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a user's memories by keyword",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().IntP("limit", "l", model.DefaultLimit, "Max results")
	cmd.Flags().Int("offset", 0, "Result offset")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	query := strings.Join(args, " ")

	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	page, err := memex.Search(h, userID, query, limit, offset)
	if err != nil {
		exitErr("search", err)
	}
	printJSON(page)
}
