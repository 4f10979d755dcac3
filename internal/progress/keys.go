package progress

import (
	"fmt"
	"net/url"
	"strconv"

	"codelap/internal/storage"
)

// Keys names the persisted progress entries.
//
// The default scheme is bare step ordinals (step_<n>_completed), shared by
// every plan and user on the machine. Setting Scoped namespaces the step keys
// by user and plan title; drafts stay keyed by exercise id, which is already
// unique.
type Keys struct {
	Scoped bool
	// UserID returns the current user when Scoped. ok=false means anonymous.
	UserID func() (id int, ok bool)
}

// LegacyKeys is the unscoped scheme.
var LegacyKeys = Keys{}

func (k Keys) scope(planTitle string) string {
	if !k.Scoped {
		return ""
	}
	user := "anon"
	if k.UserID != nil {
		if id, ok := k.UserID(); ok {
			user = strconv.Itoa(id)
		}
	}
	return fmt.Sprintf("user_%s/plan_%s/", user, url.QueryEscape(planTitle))
}

// Completed is the completion flag key for a step.
func (k Keys) Completed(planTitle string, step int) string {
	return fmt.Sprintf("%s%s%d_completed", k.scope(planTitle), storage.StepPrefix, step)
}

// Code is the per-step code key.
func (k Keys) Code(planTitle string, step int) string {
	return fmt.Sprintf("%s%s%d_code", k.scope(planTitle), storage.StepPrefix, step)
}

// Draft is the per-exercise draft key.
func (k Keys) Draft(exerciseID string) string {
	return storage.ExerciseDraftPrefix + exerciseID
}
