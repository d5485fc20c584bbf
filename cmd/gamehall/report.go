package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gamehall/internal/core"
	"gamehall/internal/report"
	"gamehall/internal/storage"
	"gamehall/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

var (
	reportDate   string
	reportFormat string
	reportOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a daily report from the local cache",
	Long:  `Print the sessions started on a day together with their totals, read from the local cache.`,
	Example: `  gamehall report --date 2026-03-01
  gamehall -c config.yaml report --format html --output report.html`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Day to report as YYYY-MM-DD (default today)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: json, md or html")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(reportFormat)
	if err != nil {
		return err
	}

	cache, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer cache.Close()

	cost, err := core.NewCostModel(cfg.Billing.HourlyRate)
	if err != nil {
		return fmt.Errorf("invalid billing config: %w", err)
	}
	store := core.NewStore(cost, core.RealClock{}, cfg.Location())

	snapshot, err := cache.LoadSnapshot(cmd.Context())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		store.Load(core.DefaultDevices(cfg.Billing.DeviceCount), nil)
	case err != nil:
		return fmt.Errorf("failed to load local data: %w", err)
	default:
		store.Load(snapshot.Devices, snapshot.Sessions)
	}

	day := reportDate
	if day == "" {
		day = store.Now().Format(report.DateLayout)
	}

	r, err := report.NewGenerator(store).DailyForDay(day)
	if err != nil {
		return err
	}

	var out []byte
	if format == report.FormatJSON {
		out, err = json.MarshalIndent(r, "", "  ")
		out = append(out, '\n')
	} else {
		out, err = report.Render(format, r, store.Devices(), cost, store.Now())
	}
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if reportOutput == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(reportOutput, out, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report for %s written to %s\n", day, reportOutput)
	return nil
}

