package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"uhfremux/internal/config"
	"uhfremux/internal/queue"
)

func newJobsCommand(configFlag *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List remux jobs recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open job store: %w", err)
			}
			defer store.Close()

			jobs, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			if jsonOutput {
				return writeJobsJSON(cmd, jobs)
			}
			printJobsTable(cmd, jobs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable output")
	return cmd
}

func printJobsTable(cmd *cobra.Command, jobs []*queue.Job) {
	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs recorded")
		return
	}

	rows := make([][]string, 0, len(jobs))
	counts := make(map[queue.RemuxStatus]int)
	for _, job := range jobs {
		counts[job.RemuxStatus]++
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			filepath.Base(job.OriginalPath),
			string(job.RemuxStatus),
			string(job.PlexStatus),
			formatJobDuration(job.RemuxDuration),
			job.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	if isTerminal(out) {
		headers := []string{"ID", "File", "Remux", "Plex", "Duration", "Updated"}
		aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
		fmt.Fprintln(out, renderTable(headers, rows, aligns))
	} else {
		for _, row := range rows {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
	}
	fmt.Fprintf(out, "%d jobs (%d completed, %d failed, %d pending)\n",
		len(jobs),
		counts[queue.RemuxCompleted],
		counts[queue.RemuxFailed],
		counts[queue.RemuxPending])
}

func formatJobDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Truncate(time.Second).String()
}

func writeJobsJSON(cmd *cobra.Command, jobs []*queue.Job) error {
	type jsonJob struct {
		ID           int64   `json:"id"`
		OriginalPath string  `json:"original_path"`
		OutputPath   string  `json:"output_path"`
		RemuxStatus  string  `json:"remux_status"`
		PlexStatus   string  `json:"plex_status"`
		Duration     float64 `json:"remux_duration_seconds"`
		Error        string  `json:"error,omitempty"`
		UpdatedAt    string  `json:"updated_at"`
	}
	payload := make([]jsonJob, 0, len(jobs))
	for _, job := range jobs {
		payload = append(payload, jsonJob{
			ID:           job.ID,
			OriginalPath: job.OriginalPath,
			OutputPath:   job.OutputPath,
			RemuxStatus:  string(job.RemuxStatus),
			PlexStatus:   string(job.PlexStatus),
			Duration:     job.RemuxDuration,
			Error:        job.ErrorMessage,
			UpdatedAt:    job.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{"jobs": payload})
}
