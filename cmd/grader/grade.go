package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
	"github.com/uchokoro/KodeCamp-task-grader/internal/dto"
)

var gradeReq dto.GradeTaskRequest

func init() {
	rootCmd.AddCommand(gradeCmd)

	flags := gradeCmd.Flags()
	flags.StringVar(&gradeReq.Workspace, "workspace", "", "LMS workspace (defaults to LMS_WORKSPACE)")
	flags.StringVar(&gradeReq.Category, "category", "submitted", "Submissions to grade: all, submitted or graded")
	flags.IntVar(&gradeReq.Offset, "offset", 0, "Offset into the submission listing")
	flags.IntVar(&gradeReq.Limit, "limit", 100, "Maximum submissions to list")
	flags.StringVar(&gradeReq.Assignment, "assignment", "", "Assignment brief (defaults to the LMS task description)")
	flags.StringVar(&gradeReq.KnowledgeArea, "knowledge-area", "", "Subject the grader is an expert in (required)")
	flags.StringVar(&gradeReq.CohortSpecifics, "cohort", "", "Cohort description injected into the prompt")
	flags.StringVar(&gradeReq.TrackName, "track", "", "Track name injected into the prompt")
	flags.StringVar(&gradeReq.OtherNotes, "notes", "", "Extra grading notes appended to the prompt")
	flags.BoolVar(&gradeReq.Force, "force", false, "Grade again even when an evaluation is stored")
	_ = gradeCmd.MarkFlagRequired("knowledge-area")
}

var gradeCmd = &cobra.Command{
	Use:   "grade <task-id>",
	Short: "Grade every submission of an LMS task",
	Long: `Grade every listed submission of an LMS task against rubrics/<task-id>.yaml.

Examples:
  # Grade new submissions
  grader grade 64f1c0 --knowledge-area "prompt engineering" --track "Agentic AI"

  # Regrade everything and print the report as JSON
  grader grade 64f1c0 --knowledge-area "prompt engineering" --category all --force --json`,
	Args: cobra.ExactArgs(1),
	RunE: runGrade,
}

func runGrade(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	req := gradeReq
	req.TaskID = args[0]
	if req.Workspace == "" {
		req.Workspace = cfg.LMS.Workspace
	}

	app := NewApp(cfg, newLogger(true))
	if err := app.Start(cmd.Context()); err != nil {
		return err
	}
	defer app.Shutdown(context.Background())

	report, err := app.grading.GradeTask(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, report)
	}

	tw := newTable(out, "SUBMISSION", "TRAINEE", "STATUS", "SCORE", "DETAIL")
	for _, outcome := range report.Outcomes {
		score := "-"
		if outcome.TotalScore != nil {
			score = strconv.FormatFloat(*outcome.TotalScore, 'f', 2, 64)
		}
		detail := outcome.Reason
		if outcome.Passed != nil {
			detail = "failed threshold"
			if *outcome.Passed {
				detail = "passed"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", outcome.SubmissionID, outcome.TraineeName, outcome.Status, score, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nrun %s: %d graded, %d skipped, %d failed\n", report.RunID, report.Graded, report.Skipped, report.Failed)
	return nil
}
