package progress

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"codelap/internal/types"
)

// Export is the downloadable progress snapshot.
type Export struct {
	LearningPlan   types.LearningPlan `json:"learningPlan"`
	CompletedSteps []int              `json:"completedSteps"`
	Timestamp      string             `json:"timestamp"`
}

var whitespace = regexp.MustCompile(`\s+`)

// Export renders the current plan and its completed steps as indented JSON.
func (s *Store) Export(now time.Time) ([]byte, error) {
	plan, ok := s.Current()
	if !ok {
		return nil, &types.NotFoundError{Kind: "plan"}
	}
	snap := Export{
		LearningPlan:   plan,
		CompletedSteps: plan.CompletedSteps(),
		Timestamp:      now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress: %w", err)
	}
	return data, nil
}

// ExportFilename is the default file name for an export of the current plan.
func (s *Store) ExportFilename() string {
	plan, _ := s.Current()
	return ExportFilename(plan.Title)
}

// ExportFilename maps a plan title to learning-progress-<title>.json with
// whitespace runs replaced by dashes and the result lowercased.
func ExportFilename(title string) string {
	return "learning-progress-" + strings.ToLower(whitespace.ReplaceAllString(title, "-")) + ".json"
}
