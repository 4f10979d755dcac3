package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codelap/cmd/codelap/ui"
	"codelap/internal/exercise"
	"codelap/internal/types"
)

var (
	submitExercise int
	submitFile     string
	submitBlanks   []string
	submitLang     string
	submitNoCheck  bool
	completeForce  bool
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Work on a step of the current plan",
}

var stepShowCmd = &cobra.Command{
	Use:   "show [n]",
	Short: "Show a step with its resources and exercises",
	Args:  cobra.ExactArgs(1),
	RunE:  runStepShow,
}

var stepCompleteCmd = &cobra.Command{
	Use:   "complete [n]",
	Short: "Mark a step without coding exercises as complete",
	Args:  cobra.ExactArgs(1),
	RunE:  runStepComplete,
}

var stepSubmitCmd = &cobra.Command{
	Use:   "submit [n]",
	Short: "Submit code for one of a step's exercises",
	Long: `Submits code for validation. Free-form exercises take the code from
--file; fill-in-the-blank exercises take answers with --blank, which may be
repeated. Unset answers keep the saved draft. Passing the last exercise of a
step completes the step.

Example:
  codelap step submit 2 --exercise 1 --blank __BLANK1__=range --blank __BLANK2__=10
  codelap step submit 3 --file solution.py`,
	Args: cobra.ExactArgs(1),
	RunE: runStepSubmit,
}

func initStepCommands() {
	stepSubmitCmd.Flags().IntVarP(&submitExercise, "exercise", "e", 1, "Exercise number within the step")
	stepSubmitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "Read code from file ('-' for stdin)")
	stepSubmitCmd.Flags().StringArrayVarP(&submitBlanks, "blank", "b", nil, "Blank answer as placeholder=value")
	stepSubmitCmd.Flags().StringVar(&submitLang, "lang", "", "Language for the local syntax check (default: from file extension, else python)")
	stepSubmitCmd.Flags().BoolVar(&submitNoCheck, "no-check", false, "Skip the local syntax check")
	stepCompleteCmd.Flags().BoolVar(&completeForce, "force", false, "Complete even if the step has coding exercises")

	stepCmd.AddCommand(stepShowCmd, stepCompleteCmd, stepSubmitCmd)
}

func stepNumber(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid step number %q", arg)
	}
	return n, nil
}

func runStepShow(cmd *cobra.Command, args []string) error {
	n, err := stepNumber(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	step, err := a.Progress.Step(n)
	if err != nil {
		return err
	}
	printMarkdown(ui.StepMarkdown(step))
	return nil
}

func runStepComplete(cmd *cobra.Command, args []string) error {
	n, err := stepNumber(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.StepSession(n)
	if err != nil {
		return err
	}
	if completeForce {
		err = a.Progress.CompleteStep(n)
	} else {
		err = s.MarkComplete()
	}
	if err != nil {
		return err
	}
	fmt.Printf("Step %d complete\n", n)
	printSummary(a.Progress.Summary())
	return nil
}

func parseBlank(raw string) (string, string, error) {
	placeholder, value, ok := strings.Cut(raw, "=")
	if !ok || placeholder == "" {
		return "", "", fmt.Errorf("invalid --blank %q (want placeholder=value)", raw)
	}
	return placeholder, value, nil
}

func readCode(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func runStepSubmit(cmd *cobra.Command, args []string) error {
	n, err := stepNumber(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.StepSession(n)
	if err != nil {
		return err
	}
	if s.Count() == 0 {
		return fmt.Errorf("step %d has no coding exercises; use 'codelap step complete %d'", n, n)
	}
	if err := s.Goto(submitExercise - 1); err != nil {
		return err
	}
	ex, _ := s.Exercise()

	if submitFile != "" {
		code, err := readCode(submitFile)
		if err != nil {
			return err
		}
		if err := s.SetCode(code); err != nil {
			logger.Warn("Draft not saved", zap.Error(err))
		}
	}
	for _, raw := range submitBlanks {
		placeholder, value, err := parseBlank(raw)
		if err != nil {
			return err
		}
		if err := s.SetAnswer(placeholder, value); err != nil {
			if !types.IsNotFound(err) {
				logger.Warn("Draft not saved", zap.Error(err))
				continue
			}
			var known []string
			for _, b := range ex.Blanks {
				known = append(known, b.Placeholder)
			}
			return fmt.Errorf("%w (blanks: %s)", err, strings.Join(known, ", "))
		}
	}

	if tmpl := s.Template(); tmpl != nil && !tmpl.Complete(s.Answers()) {
		fmt.Printf("Warning: %d of %d blanks filled\n", tmpl.Filled(s.Answers()), len(ex.Blanks))
	}
	if !submitNoCheck {
		lang := submitLang
		if lang == "" {
			lang = exercise.LanguageForFile(submitFile)
		}
		issues, err := exercise.SyntaxCheck(ctx, lang, s.Code())
		if err != nil {
			logger.Debug("Syntax check skipped", zap.Error(err))
		}
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "syntax: %s\n", issue)
		}
	}

	fmt.Printf("Submitting exercise %d/%d of step %d: %s\n", s.Index()+1, s.Count(), n, ex.Title)
	out, err := s.Submit(ctx)
	if err != nil {
		if last := s.LastResult(); last != nil {
			printValidation(last)
		}
		return err
	}

	printValidation(out.Result)
	switch {
	case out.StepCompleted:
		fmt.Printf("Step %d complete!\n", n)
		printSummary(a.Progress.Summary())
	case out.Advanced:
		next, _ := s.Exercise()
		fmt.Printf("Next: exercise %d/%d %s (codelap step submit %d --exercise %d)\n", s.Index()+1, s.Count(), next.Title, n, s.Index()+1)
	}
	return nil
}
