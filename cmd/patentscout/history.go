package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored search reports",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.String("query", "", "only reports for this exact query")
	f.Duration("since", 0, "only reports newer than this, e.g. 72h")
	f.Int("limit", 20, "maximum number of reports (0 for all)")
	f.Int("offset", 0, "skip this many reports")
	f.Bool("json", false, "print the full reports as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	filter := storage.Filter{}
	filter.Query, _ = flags.GetString("query")
	filter.Limit, _ = flags.GetInt("limit")
	filter.Offset, _ = flags.GetInt("offset")
	if since, _ := flags.GetDuration("since"); since > 0 {
		t := time.Now().Add(-since)
		filter.Since = &t
	}

	backend, err := openBackend(cmd.Context(), cfg.Storage)
	if err != nil {
		return err
	}
	if backend == nil {
		return fmt.Errorf("history is disabled (storage.type is none)")
	}
	defer backend.Close()

	reports, err := backend.Query(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := flags.GetBool("json"); asJSON {
		if reports == nil {
			reports = []*storage.Report{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTOTAL\tQUERY")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Summary.Total, r.Summary.Query)
	}
	return tw.Flush()
}
