package exercise

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"codelap/internal/logging"
	"codelap/internal/types"
)

// RetryFeedback is shown when validation could not be reached.
const RetryFeedback = "Error validating code. Please try again."

// Validator checks submitted code.
type Validator interface {
	ValidateCode(ctx context.Context, sub types.CodingExerciseSubmission) (*types.ValidationResult, error)
}

// Progress is the part of the progress store a session writes to.
type Progress interface {
	CompleteStep(n int) error
	SaveDraft(n int, exerciseID, code string) error
	LoadDraft(exerciseID string) (string, bool)
}

// Outcome is the result of an accepted submission.
type Outcome struct {
	Result        *types.ValidationResult
	Advanced      bool // moved on to the next exercise
	StepCompleted bool // last exercise passed and the step was marked complete
}

// Session drives the exercises of one step. Edits are autosaved as drafts.
// At most one submission is in flight; a response that arrives after the
// user moved to another exercise is discarded.
type Session struct {
	step     types.LearningStep
	api      Validator
	progress Progress

	inflight   *semaphore.Weighted
	submitting atomic.Bool

	mu       sync.Mutex
	index    int
	epoch    uint64
	code     string
	template *Template
	answers  Answers
	passed   map[string]bool
	last     *types.ValidationResult
}

// NewSession opens step at its first exercise.
func NewSession(step types.LearningStep, api Validator, progress Progress) *Session {
	s := &Session{
		step:     step.Clone(),
		api:      api,
		progress: progress,
		inflight: semaphore.NewWeighted(1),
		passed:   make(map[string]bool),
	}
	s.mu.Lock()
	s.load()
	s.mu.Unlock()
	return s
}

// Step returns the step being worked on.
func (s *Session) Step() types.LearningStep { return s.step.Clone() }

// Count is the number of coding exercises in the step.
func (s *Session) Count() int { return len(s.step.CodingExercises) }

// Index is the position of the current exercise.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Exercise returns the current exercise.
func (s *Session) Exercise() (types.CodingExercise, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

func (s *Session) current() (types.CodingExercise, bool) {
	if s.index < 0 || s.index >= len(s.step.CodingExercises) {
		return types.CodingExercise{}, false
	}
	return s.step.CodingExercises[s.index], true
}

// Code returns the code that would be submitted.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Template returns the blank template of the current exercise, or nil for a
// free-form exercise.
func (s *Session) Template() *Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// Answers returns a copy of the current blank answers.
func (s *Session) Answers() Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Answers, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// LastResult is the most recent validation result for the current exercise.
func (s *Session) LastResult() *types.ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Passed counts exercises accepted in this session.
func (s *Session) Passed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.passed)
}

// Submitting reports whether a submission is in flight.
func (s *Session) Submitting() bool { return s.submitting.Load() }

// SetCode replaces the code of a free-form exercise.
func (s *Session) SetCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.current()
	if !ok {
		return s.noExercise()
	}
	s.code = code
	s.template = nil
	s.answers = Answers{}
	return s.saveDraft(ex)
}

// SetAnswer fills one blank and re-renders the code.
func (s *Session) SetAnswer(placeholder, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.current()
	if !ok {
		return s.noExercise()
	}
	if s.template == nil {
		s.template = ParseTemplate(ex.CodeTemplate, ex.Blanks)
	}
	known := false
	for _, b := range ex.Blanks {
		if b.Placeholder == placeholder {
			known = true
			break
		}
	}
	if !known {
		return &types.NotFoundError{Kind: "blank", ID: strconv.Quote(placeholder)}
	}
	s.answers[placeholder] = value
	s.code = s.template.Render(s.answers)
	return s.saveDraft(ex)
}

// Reset restores the current exercise to its template.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.current()
	if !ok {
		return s.noExercise()
	}
	s.epoch++
	s.last = nil
	s.answers = Answers{}
	s.code = ex.CodeTemplate
	if ex.IsFillInTheBlank() {
		s.template = ParseTemplate(ex.CodeTemplate, ex.Blanks)
	}
	return s.saveDraft(ex)
}

// Next moves to the following exercise. It returns false at the end.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index+1 >= len(s.step.CodingExercises) {
		return false
	}
	s.index++
	s.load()
	return true
}

// Previous moves to the preceding exercise. It returns false at the start.
func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == 0 {
		return false
	}
	s.index--
	s.load()
	return true
}

// Goto moves to exercise i.
func (s *Session) Goto(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.step.CodingExercises) {
		return &types.NotFoundError{Kind: "exercise", ID: strconv.Itoa(i + 1)}
	}
	if i != s.index {
		s.index = i
		s.load()
	}
	return nil
}

// Submit sends the current code for validation. A second call while one is
// pending fails with ErrSubmissionInProgress. On a correct answer the session
// advances to the next exercise, or completes the step after the last one.
func (s *Session) Submit(ctx context.Context) (*Outcome, error) {
	if !s.inflight.TryAcquire(1) {
		return nil, types.ErrSubmissionInProgress
	}
	defer s.inflight.Release(1)
	s.submitting.Store(true)
	defer s.submitting.Store(false)

	s.mu.Lock()
	ex, ok := s.current()
	if !ok {
		s.mu.Unlock()
		return nil, s.noExercise()
	}
	epoch := s.epoch
	sub := types.CodingExerciseSubmission{ExerciseID: ex.ID, UserCode: s.code, StepNumber: s.step.Step}
	s.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryExercise, "validate "+ex.ID)
	result, err := s.api.ValidateCode(ctx, sub)
	timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		logging.ExerciseDebug("Dropping validation of %s: superseded", ex.ID)
		return nil, types.ErrSuperseded
	}
	if err != nil {
		logging.ExerciseWarn("Validation of %s failed: %v", ex.ID, err)
		s.last = &types.ValidationResult{ExerciseID: ex.ID, Feedback: RetryFeedback, Hints: []string{}, ErrorMessage: "Network error"}
		return nil, err
	}

	s.last = result
	out := &Outcome{Result: result}
	if !result.IsCorrect {
		logging.Exercise("Exercise %s rejected (score %.0f)", ex.ID, result.Score)
		return out, nil
	}

	s.passed[ex.ID] = true
	if s.index+1 < len(s.step.CodingExercises) {
		s.index++
		s.load()
		out.Advanced = true
		logging.Exercise("Exercise %s passed, advancing to %d/%d", ex.ID, s.index+1, len(s.step.CodingExercises))
		return out, nil
	}

	if err := s.progress.CompleteStep(s.step.Step); err != nil {
		return out, fmt.Errorf("exercise passed but step %d could not be marked complete: %w", s.step.Step, err)
	}
	out.StepCompleted = true
	logging.Exercise("Step %d complete after exercise %s", s.step.Step, ex.ID)
	return out, nil
}

// MarkComplete completes a step that has no coding exercises.
func (s *Session) MarkComplete() error {
	if s.step.HasCodingExercises() {
		return fmt.Errorf("step %d has coding exercises; submit them instead", s.step.Step)
	}
	return s.progress.CompleteStep(s.step.Step)
}

// load resets per-exercise state for s.index. Caller holds s.mu.
func (s *Session) load() {
	s.epoch++
	s.last = nil
	s.answers = Answers{}
	s.template = nil

	ex, ok := s.current()
	if !ok {
		s.code = ""
		return
	}

	s.code = ex.CodeTemplate
	draft, found := s.progress.LoadDraft(ex.ID)
	if found {
		s.code = draft
	}
	if !ex.IsFillInTheBlank() {
		return
	}

	s.template = ParseTemplate(ex.CodeTemplate, ex.Blanks)
	if !found {
		return
	}
	if answers, ok := s.template.Recover(draft); ok {
		s.answers = answers
	} else {
		// The draft was edited freely; keep it as plain code.
		s.template = nil
	}
}

func (s *Session) saveDraft(ex types.CodingExercise) error {
	if err := s.progress.SaveDraft(s.step.Step, ex.ID, s.code); err != nil {
		logging.ExerciseWarn("Autosave of %s failed: %v", ex.ID, err)
		return err
	}
	return nil
}

func (s *Session) noExercise() error {
	return &types.NotFoundError{Kind: "exercise", ID: strconv.Itoa(s.index + 1)}
}
