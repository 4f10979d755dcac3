// Package storage provides the persistent key/value store backing every
// client-side store (session, progress, saved plans).
package storage

// KV is a string key/value store with last-write-wins semantics.
type KV interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Keys lists keys beginning with prefix in lexical order.
	Keys(prefix string) ([]string, error)
}

// Well-known keys shared with the stores.
const (
	KeyToken            = "token"
	KeyUser             = "user"
	KeyLastSearch       = "last_search"
	KeyCurrentPlan      = "current_plan"
	SavedPlansPrefix    = "saved_plans_user_"
	StepPrefix          = "step_"
	ExerciseDraftPrefix = "exercise_"
)
