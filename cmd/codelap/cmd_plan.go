package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codelap/cmd/codelap/ui"
	"codelap/internal/types"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query or GitHub URL]",
	Short: "Search for repositories to learn from",
	Long: `Searches the backend for repositories matching a term, or looks up a
single repository by URL. Results are remembered so 'plan generate' can
refer to them by number.

Example:
  codelap search fastapi
  codelap plan generate 1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate, approve and manage learning plans",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate [result number | GitHub URL]",
	Short: "Generate a learning plan and make it the current plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanGenerate,
}

var planApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Save the current plan to your plans",
	Args:  cobra.NoArgs,
	RunE:  runPlanApprove,
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your saved plans",
	Args:  cobra.NoArgs,
	RunE:  runPlanList,
}

var planShowCmd = &cobra.Command{
	Use:   "show [title]",
	Short: "Show the current plan, or a saved plan by title",
	RunE:  runPlanShow,
}

var planOpenCmd = &cobra.Command{
	Use:   "open [title]",
	Short: "Make a saved plan the current plan",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlanOpen,
}

var planRemoveCmd = &cobra.Command{
	Use:   "remove [title]",
	Short: "Delete a saved plan",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlanRemove,
}

func initPlanCommands() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")

	planCmd.AddCommand(planGenerateCmd, planApproveCmd, planListCmd, planShowCmd, planOpenCmd, planRemoveCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	query := joinArgs(args)
	logger.Debug("Searching", zap.String("query", query), zap.Int("limit", searchLimit))
	resp, err := a.Search(ctx, query, searchLimit)
	if err != nil {
		return err
	}
	if len(resp.Repositories) == 0 {
		fmt.Printf("No repositories found for %q\n", query)
		return nil
	}

	fmt.Print(repositoryTable(resp).View(cliStyles()))
	if len(resp.AIPrerequisites) > 0 {
		fmt.Printf("\nSuggested prerequisites: %s\n", strings.Join(resp.AIPrerequisites, ", "))
	}
	fmt.Println("\nRun 'codelap plan generate <#>' to build a learning plan.")
	return nil
}

func runPlanGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	target := strings.TrimSpace(args[0])
	var plan types.LearningPlan
	if n, convErr := strconv.Atoi(target); convErr == nil {
		last, ok := a.LastSearch()
		if !ok {
			return errors.New("no previous search; run 'codelap search' first or pass a repository URL")
		}
		if n < 1 || n > len(last.Repositories) {
			return fmt.Errorf("result %d out of range (1-%d)", n, len(last.Repositories))
		}
		repo := last.Repositories[n-1]
		fmt.Printf("Generating a learning plan for %s...\n", repo.FullName)
		plan, err = a.Generate(ctx, repo)
	} else {
		fmt.Printf("Generating a learning plan for %s...\n", target)
		plan, err = a.GenerateFromURL(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	printMarkdown(ui.PlanMarkdown(plan))
	fmt.Println("Run 'codelap plan approve' to save this plan.")
	return nil
}

func runPlanApprove(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	current, ok := a.Progress.Current()
	if !ok {
		return errors.New("no current plan; run 'codelap plan generate' first")
	}
	saved, err := a.Approve()
	if err != nil {
		return err
	}
	fmt.Printf("Saved %q (%d plan(s) saved)\n", current.Title, len(saved))
	return nil
}

func runPlanList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	saved, err := a.SavedPlans()
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		fmt.Println("No saved plans yet")
		return nil
	}
	fmt.Print(planTable(saved).View(cliStyles()))
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	if len(args) == 0 {
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()
		current, ok := a.Progress.Current()
		if !ok {
			return errors.New("no current plan")
		}
		printMarkdown(ui.PlanMarkdown(current))
		return nil
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	p, err := a.FindPlan(joinArgs(args))
	if err != nil {
		return err
	}
	printMarkdown(ui.PlanMarkdown(p))
	return nil
}

func runPlanOpen(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.Open(joinArgs(args))
	if err != nil {
		return err
	}
	fmt.Printf("Current plan: %s\n", plan.Title)
	printSummary(a.Progress.Summary())
	return nil
}

func runPlanRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	title := joinArgs(args)
	left, err := a.RemovePlan(title)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %q (%d plan(s) left)\n", title, len(left))
	return nil
}
