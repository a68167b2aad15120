package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rcliao/memex"
)

func init() {
	decayCmd := &cobra.Command{
		Use:   "decay",
		Short: "Run or inspect the decay pass",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a decay pass now",
		Run:   runDecayRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report what a decay pass would remove, without mutating",
		Run:   runDecayAnalyze,
	}

	policyCmd := &cobra.Command{
		Use:   "policy [json]",
		Short: "Update the compression policy decay's Pass 4 uses",
		Args:  cobra.ExactArgs(1),
		Run:   runDecayPolicy,
	}

	decayCmd.AddCommand(runCmd, analyzeCmd, policyCmd)
	RootCmd.AddCommand(decayCmd)
}

func runDecayRun(cmd *cobra.Command, args []string) {
	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	stats, err := memex.Decay(h)
	if err != nil {
		exitErr("decay run", err)
	}
	printJSON(stats)
}

func runDecayAnalyze(cmd *cobra.Command, args []string) {
	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	plan, err := memex.DecayAnalyze(h)
	if err != nil {
		exitErr("decay analyze", err)
	}
	printJSON(plan)
}

func runDecayPolicy(cmd *cobra.Command, args []string) {
	h, cleanup, err := openHandle()
	if err != nil {
		exitErr("open engine", err)
	}
	defer cleanup()

	ok, err := memex.UpdateDecayPolicy(h, []byte(args[0]))
	if err != nil {
		exitErr("decay policy", err)
	}
	b, _ := json.Marshal(map[string]bool{"ok": ok})
	printJSON(b)
}
