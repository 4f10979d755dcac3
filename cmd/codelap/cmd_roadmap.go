package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codelap/cmd/codelap/ui"
)

var (
	resetConfirmed bool
	exportOut      string
)

var roadmapCmd = &cobra.Command{
	Use:   "roadmap",
	Short: "Show the current plan's steps and progress",
	Args:  cobra.NoArgs,
	RunE:  runRoadmap,
}

var roadmapContinueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Show the first step that is not complete",
	Args:  cobra.NoArgs,
	RunE:  runRoadmapContinue,
}

var roadmapResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear completion flags and drafts for the current plan",
	Args:  cobra.NoArgs,
	RunE:  runRoadmapReset,
}

var roadmapExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current plan and progress to a JSON file",
	Args:  cobra.NoArgs,
	RunE:  runRoadmapExport,
}

func initRoadmapCommands() {
	roadmapResetCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "Do not ask for confirmation")
	roadmapExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: learning-progress-<title>.json in the workspace)")

	roadmapCmd.AddCommand(roadmapContinueCmd, roadmapResetCmd, roadmapExportCmd)
}

func runRoadmap(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, ok := a.Progress.Current()
	if !ok {
		return errors.New("no current plan; generate one or run 'codelap plan open <title>'")
	}

	styles := cliStyles()
	fmt.Println(styles.Title.Render(plan.Title))
	for _, step := range plan.LearningSteps {
		line := fmt.Sprintf("%s %2d. %s", styles.Check(step.Completed), step.Step, step.Title)
		if n := len(step.CodingExercises); n > 0 {
			line += styles.Muted.Render(fmt.Sprintf("  (%d exercise(s))", n))
		}
		fmt.Println(line)
	}
	fmt.Println()
	printSummary(a.Progress.Summary())
	return nil
}

func runRoadmapContinue(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, ok := a.Progress.Current(); !ok {
		return errors.New("no current plan")
	}
	step, ok := a.Progress.NextIncomplete()
	if !ok {
		fmt.Println("All steps complete.")
		printSummary(a.Progress.Summary())
		return nil
	}
	printMarkdown(ui.StepMarkdown(step))
	return nil
}

func runRoadmapReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, ok := a.Progress.Current()
	if !ok {
		return errors.New("no current plan")
	}
	if !resetConfirmed {
		return fmt.Errorf("this clears all progress for %q; rerun with --yes to confirm", plan.Title)
	}
	if err := a.Progress.ResetProgress(); err != nil {
		return fmt.Errorf("reset incomplete: %w", err)
	}
	logger.Info("Progress reset", zap.String("plan", plan.Title))
	fmt.Printf("Progress for %q reset\n", plan.Title)
	return nil
}

func runRoadmapExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.Progress.Export(time.Now())
	if err != nil {
		return err
	}
	out := exportOut
	if out == "" {
		out = filepath.Join(resolveWorkspace(), a.Progress.ExportFilename())
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("Exported progress to %s\n", out)
	return nil
}
