// Package plans keeps each user's approved learning plans.
package plans

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"codelap/internal/logging"
	"codelap/internal/storage"
	"codelap/internal/types"
)

// IdentityKey is the identity rule for saved plans: two plans with the same
// title are the same saved plan, whatever repository they came from.
func IdentityKey(plan types.LearningPlan) string {
	return plan.Title
}

// Store is the saved-plans store.
type Store struct {
	kv storage.KV
	mu sync.Mutex
}

// New creates a saved-plans store over kv.
func New(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Key is the storage key holding a user's saved plans.
func Key(userID int) string {
	return storage.SavedPlansPrefix + strconv.Itoa(userID)
}

// List returns the user's saved plans in save order. A missing or malformed
// entry yields an empty list.
func (s *Store) List(userID int) []types.LearningPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(userID)
}

// Save appends plan unless one with the same identity is already saved, and
// returns the full list.
func (s *Store) Save(userID int, plan types.LearningPlan) ([]types.LearningPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.load(userID)
	for _, p := range existing {
		if IdentityKey(p) == IdentityKey(plan) {
			logging.Plans("Plan %q already saved for user %d", plan.Title, userID)
			if err := s.store(userID, existing); err != nil {
				return existing, err
			}
			return existing, nil
		}
	}

	updated := append(existing, plan.Clone())
	if err := s.store(userID, updated); err != nil {
		return existing, err
	}
	logging.Plans("Saved plan %q for user %d (%d total)", plan.Title, userID, len(updated))
	return updated, nil
}

// Find returns the saved plan with the given title.
func (s *Store) Find(userID int, title string) (types.LearningPlan, error) {
	for _, p := range s.List(userID) {
		if p.Title == title {
			return p, nil
		}
	}
	return types.LearningPlan{}, &types.NotFoundError{Kind: "plan", ID: strconv.Quote(title)}
}

// Remove deletes the saved plan with the given title and returns the
// remaining list.
func (s *Store) Remove(userID int, title string) ([]types.LearningPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.load(userID)
	kept := make([]types.LearningPlan, 0, len(existing))
	for _, p := range existing {
		if p.Title != title {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(existing) {
		return existing, &types.NotFoundError{Kind: "plan", ID: strconv.Quote(title)}
	}
	if err := s.store(userID, kept); err != nil {
		return existing, err
	}
	logging.Plans("Removed plan %q for user %d", title, userID)
	return kept, nil
}

func (s *Store) load(userID int) []types.LearningPlan {
	raw, found, err := s.kv.Get(Key(userID))
	if err != nil {
		logging.PlansError("Failed to read saved plans for user %d: %v", userID, err)
		return []types.LearningPlan{}
	}
	if !found || raw == "" {
		return []types.LearningPlan{}
	}

	var plans []types.LearningPlan
	if err := json.Unmarshal([]byte(raw), &plans); err != nil {
		logging.PlansError("Failed to parse saved plans for user %d: %v", userID, err)
		return []types.LearningPlan{}
	}
	if plans == nil {
		return []types.LearningPlan{}
	}
	return plans
}

func (s *Store) store(userID int, plans []types.LearningPlan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("failed to marshal saved plans: %w", err)
	}
	if err := s.kv.Set(Key(userID), string(data)); err != nil {
		logging.PlansError("Failed to save plans for user %d: %v", userID, err)
		return fmt.Errorf("failed to save plans: %w", err)
	}
	return nil
}
