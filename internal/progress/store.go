// Package progress tracks step completion for the current learning plan.
//
// A plan only becomes "current" through AttachPlan, which overlays the
// persisted completion flags onto a copy of the plan. Completion queries on a
// plan that has not been attached are not meaningful.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"codelap/internal/logging"
	"codelap/internal/storage"
	"codelap/internal/types"
)

const flagTrue = "true"

// Store is the progress store.
type Store struct {
	kv   storage.KV
	keys Keys

	mu   sync.RWMutex
	plan *types.LearningPlan
}

// New creates a progress store over kv using the given key scheme.
func New(kv storage.KV, keys Keys) *Store {
	return &Store{kv: kv, keys: keys}
}

// AttachPlan makes a copy of plan current, with every step's Completed
// overwritten from the persisted flags, and returns another copy of it.
func (s *Store) AttachPlan(plan types.LearningPlan) types.LearningPlan {
	current := plan.Clone()
	for i := range current.LearningSteps {
		current.LearningSteps[i].Completed = s.readFlag(current.Title, current.LearningSteps[i].Step)
	}

	s.mu.Lock()
	s.plan = &current
	s.mu.Unlock()

	s.persistCurrent(current)
	logging.Progress("Attached plan %q (%d/%d complete)", current.Title, len(current.CompletedSteps()), len(current.LearningSteps))
	return current.Clone()
}

// RestoreCurrent re-attaches the plan that was current when the process last
// ran. It returns false when none was recorded or the record is unreadable.
func (s *Store) RestoreCurrent() (types.LearningPlan, bool) {
	raw, found, err := s.kv.Get(storage.KeyCurrentPlan)
	if err != nil || !found {
		return types.LearningPlan{}, false
	}
	var plan types.LearningPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		logging.ProgressError("Current plan record is malformed, ignoring: %v", err)
		return types.LearningPlan{}, false
	}
	return s.AttachPlan(plan), true
}

// Detach forgets the current plan. Persisted flags are untouched.
func (s *Store) Detach() error {
	s.mu.Lock()
	s.plan = nil
	s.mu.Unlock()
	return s.kv.Delete(storage.KeyCurrentPlan)
}

// Current returns a copy of the current plan.
func (s *Store) Current() (types.LearningPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return types.LearningPlan{}, false
	}
	return s.plan.Clone(), true
}

// Step returns a step of the current plan.
func (s *Store) Step(n int) (types.LearningStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return types.LearningStep{}, &types.NotFoundError{Kind: "plan"}
	}
	step, ok := s.plan.Step(n)
	if !ok {
		return types.LearningStep{}, &types.NotFoundError{Kind: "step", ID: strconv.Itoa(n)}
	}
	return step.Clone(), nil
}

// CompleteStep marks step n complete in storage and in the current plan.
// It is a no-op without a current plan and idempotent otherwise.
func (s *Store) CompleteStep(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		logging.ProgressDebug("CompleteStep(%d) ignored: no current plan", n)
		return nil
	}

	if err := s.kv.Set(s.keys.Completed(s.plan.Title, n), flagTrue); err != nil {
		return fmt.Errorf("failed to record completion of step %d: %w", n, err)
	}
	for i := range s.plan.LearningSteps {
		if s.plan.LearningSteps[i].Step == n {
			s.plan.LearningSteps[i].Completed = true
		}
	}
	logging.Progress("Step %d of %q complete", n, s.plan.Title)
	return nil
}

// IsStepComplete reads the persisted flag for step n.
func (s *Store) IsStepComplete(n int) bool {
	s.mu.RLock()
	title := ""
	if s.plan != nil {
		title = s.plan.Title
	}
	s.mu.RUnlock()
	return s.readFlag(title, n)
}

// ResetProgress deletes the completion flag, step code and exercise drafts of
// every step in the current plan and clears the in-memory flags. It is a
// no-op without a current plan. A step whose flag could not be deleted keeps
// its in-memory completion so memory never disagrees with storage.
func (s *Store) ResetProgress() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return nil
	}

	var errs []error
	for i := range s.plan.LearningSteps {
		step := &s.plan.LearningSteps[i]
		flagErr := s.kv.Delete(s.keys.Completed(s.plan.Title, step.Step))
		errs = append(errs, flagErr, s.kv.Delete(s.keys.Code(s.plan.Title, step.Step)))
		for _, ex := range step.CodingExercises {
			errs = append(errs, s.kv.Delete(s.keys.Draft(ex.ID)))
		}
		if flagErr == nil {
			step.Completed = false
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logging.ProgressError("Reset of %q incomplete: %v", s.plan.Title, err)
		return fmt.Errorf("failed to reset progress: %w", err)
	}
	logging.Progress("Reset progress of %q", s.plan.Title)
	return nil
}

// Summary is the completion tally of the current plan.
type Summary struct {
	Completed int
	Total     int
}

// Percent returns completion as 0-100.
func (s Summary) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) * 100 / float64(s.Total)
}

// Summary tallies the current plan.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return Summary{}
	}
	return Summary{Completed: len(s.plan.CompletedSteps()), Total: len(s.plan.LearningSteps)}
}

// NextIncomplete returns the first step not yet completed.
func (s *Store) NextIncomplete() (types.LearningStep, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return types.LearningStep{}, false
	}
	for _, step := range s.plan.LearningSteps {
		if !step.Completed {
			return step.Clone(), true
		}
	}
	return types.LearningStep{}, false
}

// SaveDraft persists the code being edited for an exercise of step n.
func (s *Store) SaveDraft(n int, exerciseID, code string) error {
	s.mu.RLock()
	title := ""
	if s.plan != nil {
		title = s.plan.Title
	}
	s.mu.RUnlock()

	if err := s.kv.Set(s.keys.Draft(exerciseID), code); err != nil {
		return fmt.Errorf("failed to save draft for %s: %w", exerciseID, err)
	}
	if err := s.kv.Set(s.keys.Code(title, n), code); err != nil {
		return fmt.Errorf("failed to save code for step %d: %w", n, err)
	}
	logging.ProgressDebug("Saved draft for %s (%d bytes)", exerciseID, len(code))
	return nil
}

// LoadDraft returns the saved draft for an exercise.
func (s *Store) LoadDraft(exerciseID string) (string, bool) {
	code, found, err := s.kv.Get(s.keys.Draft(exerciseID))
	if err != nil {
		logging.ProgressError("Failed to read draft for %s: %v", exerciseID, err)
		return "", false
	}
	return code, found
}

func (s *Store) readFlag(planTitle string, n int) bool {
	v, found, err := s.kv.Get(s.keys.Completed(planTitle, n))
	if err != nil {
		logging.ProgressError("Failed to read completion of step %d: %v", n, err)
		return false
	}
	return found && v == flagTrue
}

func (s *Store) persistCurrent(plan types.LearningPlan) {
	data, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if err := s.kv.Set(storage.KeyCurrentPlan, string(data)); err != nil {
		logging.ProgressError("Failed to remember current plan: %v", err)
	}
}
