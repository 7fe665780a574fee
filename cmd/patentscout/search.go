package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FranksOps/patentscout/internal/report"
	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search patents and print a report",
	Long: `Search sends the query to Google Patents through SerpAPI, enriches each of the
top results from its patent page and prints a summary of the most frequent
assignees and inventors followed by the patent details.

The report can also be written as a Word document (--docx) or an HTML page
(--html). Unless --no-save is given, it is stored in the history backend.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntP("num", "n", 0, "number of patents to fetch, 1-100 (default search.default_num)")
	f.StringP("format", "f", "text", "output format: text, json or html")
	f.String("docx", "", "also write the report as a Word document to this file")
	f.String("html", "", "also write the report as an HTML page to this file")
	f.Bool("no-enrich", false, "skip fetching patent pages")
	f.Bool("no-save", false, "do not store the report in history")
	f.Bool("respect-robots", false, "skip patent pages disallowed by robots.txt")

	_ = v.BindPFlag("enrich.respect_robots", f.Lookup("respect-robots"))

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	num, _ := flags.GetInt("num")
	if num == 0 {
		num = cfg.Search.DefaultNum
	}
	format, _ := flags.GetString("format")
	if format != "text" && format != "json" && format != "html" {
		return fmt.Errorf("unknown format %q", format)
	}
	if noEnrich, _ := flags.GetBool("no-enrich"); noEnrich {
		cfg.Enrich.Enabled = false
	}
	noSave, _ := flags.GetBool("no-save")

	p, closeBackend, err := newPipeline(cmd.Context(), cfg, logger, !noSave)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn("closing storage", "err", err)
		}
	}()

	query := strings.Join(args, " ")
	rep, err := p.Run(cmd.Context(), query, num)
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), format, rep); err != nil {
		return err
	}

	if path, _ := flags.GetString("docx"); path != "" {
		if err := writeFile(path, func(w io.Writer) error { return report.WriteDocx(w, rep) }); err != nil {
			return err
		}
		logger.Info("word report written", "path", path)
	}
	if path, _ := flags.GetString("html"); path != "" {
		if err := writeFile(path, func(w io.Writer) error { return report.WriteHTML(w, report.Page{Query: query, Report: rep}) }); err != nil {
			return err
		}
		logger.Info("html report written", "path", path)
	}
	return nil
}

func writeReport(w io.Writer, format string, rep *storage.Report) error {
	switch format {
	case "json":
		return report.WriteJSON(w, rep)
	case "html":
		return report.WriteHTML(w, report.Page{Query: rep.Summary.Query, Report: rep})
	default:
		return report.WriteText(w, rep)
	}
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	return write(f)
}
