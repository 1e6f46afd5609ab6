package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/raphaelgruber/framegrab/internal/stash"
	"github.com/spf13/cobra"
)

var (
	jobsWatch bool
	jobsStop  bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect background jobs",
	Long: `List the server's job queue or inspect a specific job by ID.

Examples:
  framegrab jobs             # List queued and running jobs
  framegrab jobs 12          # Show details for job 12
  framegrab jobs 12 --watch  # Follow job 12 until it ends
  framegrab jobs 12 --stop   # Ask the server to stop job 12`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVarP(&jobsWatch, "watch", "w", false, "follow the job with a progress bar")
	jobsCmd.Flags().BoolVar(&jobsStop, "stop", false, "stop the job")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listJobs(ctx, out)
	}

	id := args[0]
	if jobsStop {
		ok, err := stashClient.StopJob(ctx, id)
		if err != nil {
			return fmt.Errorf("stop job: %w", err)
		}
		if !ok {
			return fmt.Errorf("job %s was not stopped", id)
		}
		fmt.Fprintf(out, "Stopping job %s\n", id)
		return nil
	}

	job, err := stashClient.FindJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}

	if jobsWatch && job.Status != stash.JobStatusFinished &&
		job.Status != stash.JobStatusFailed && job.Status != stash.JobStatusCancelled {
		return RunJobProgress(stashClient, job)
	}

	printJob(out, job)
	return nil
}

func listJobs(ctx context.Context, out io.Writer) error {
	jobs, err := stashClient.JobQueue(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "%-10s %-12s %-10s %-10s %s\n", "ID", "STATUS", "PROGRESS", "ADDED", "DESCRIPTION")
	fmt.Fprintln(out, "------------------------------------------------------------------------")

	for _, job := range jobs {
		progress := ""
		if job.Progress != nil {
			progress = fmt.Sprintf("%.0f%%", jobFraction(&job)*100)
		}
		added := job.AddTime.Local().Format("15:04:05")
		fmt.Fprintf(out, "%-10s %-12s %-10s %-10s %s\n", job.ID, job.Status, progress, added, job.Description)
	}

	return nil
}

func printJob(out io.Writer, job *stash.Job) {
	fmt.Fprintf(out, "Job: %s\n", job.ID)
	fmt.Fprintf(out, "  Description: %s\n", job.Description)
	fmt.Fprintf(out, "  Status: %s\n", job.Status)
	if job.Progress != nil {
		fmt.Fprintf(out, "  Progress: %.0f%%\n", jobFraction(job)*100)
	}
	fmt.Fprintf(out, "  Added: %s\n", job.AddTime.Format(time.RFC3339))
	if job.StartTime != nil {
		fmt.Fprintf(out, "  Started: %s\n", job.StartTime.Format(time.RFC3339))
	}
	if job.EndTime != nil {
		fmt.Fprintf(out, "  Ended: %s\n", job.EndTime.Format(time.RFC3339))
		if job.StartTime != nil {
			fmt.Fprintf(out, "  Duration: %s\n", job.EndTime.Sub(*job.StartTime).Round(time.Second))
		}
	}
	for _, sub := range job.SubTasks {
		fmt.Fprintf(out, "    - %s\n", sub)
	}
	if job.Error != nil && *job.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", *job.Error)
	}
}
