package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
	"github.com/uchokoro/KodeCamp-task-grader/internal/lms"
)

var (
	subWorkspace string
	subCategory  string
	subOffset    int
	subLimit     int
)

func init() {
	rootCmd.AddCommand(submissionsCmd)

	flags := submissionsCmd.Flags()
	flags.StringVar(&subWorkspace, "workspace", "", "LMS workspace (defaults to LMS_WORKSPACE)")
	flags.StringVar(&subCategory, "category", "all", "Submissions to list: all, submitted or graded")
	flags.IntVar(&subOffset, "offset", 0, "Offset into the submission listing")
	flags.IntVar(&subLimit, "limit", 100, "Maximum submissions to list")
}

var submissionsCmd = &cobra.Command{
	Use:   "submissions <task-id>",
	Short: "List LMS submissions for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmissions,
}

func runSubmissions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	category, err := lms.ParseCategory(subCategory)
	if err != nil {
		return err
	}
	workspace := subWorkspace
	if workspace == "" {
		workspace = cfg.LMS.Workspace
	}

	app := NewApp(cfg, newLogger(true))
	if err := app.ConnectLMS(); err != nil {
		return err
	}
	defer app.Shutdown(context.Background())

	submissions, err := app.lms.TaskSubmissions(cmd.Context(), args[0], workspace, category, subOffset, subLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, submissions)
	}

	tw := newTable(out, "SUBMISSION", "TRAINEE", "STATUS", "SUBMITTED", "SOLUTION")
	for _, s := range submissions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.SubmissionID, s.TraineeName, s.Status, s.SubmissionDate, strings.Join(s.SolutionURLs, " "))
	}
	return tw.Flush()
}
