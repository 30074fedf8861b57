package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uchokoro/KodeCamp-task-grader/internal/grading"
)

func init() {
	rootCmd.AddCommand(rubricCmd)
	rubricCmd.AddCommand(rubricValidateCmd)
}

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Work with rubric files",
}

var rubricValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check rubric files against the rubric invariants",
	Long: `Check rubric files against the rubric invariants and print the criteria
they define.

Examples:
  grader rubric validate rubrics/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRubricValidate,
}

func runRubricValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0

	for _, path := range args {
		rubric, err := grading.LoadRubric(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			continue
		}

		fmt.Fprintf(out, "ok   %s: task %s, %d criteria, total weight %.2f, pass %g/%g\n",
			path, rubric.TaskID, len(rubric.Criteria), rubric.TotalWeight(), rubric.MinPassingScore, rubric.OverallMaxScore)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d rubric files are invalid", failed, len(args))
	}
	return nil
}
