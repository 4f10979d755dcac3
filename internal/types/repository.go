package types

// RepositoryInfo is the GitHub repository record returned by the search backend.
type RepositoryInfo struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Description   string   `json:"description,omitempty"`
	HTMLURL       string   `json:"html_url"`
	CloneURL      string   `json:"clone_url"`
	Language      string   `json:"language,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Stars         int      `json:"stars"`
	Forks         int      `json:"forks"`
	Watchers      int      `json:"watchers"`
	OpenIssues    int      `json:"open_issues"`
	Size          int      `json:"size,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
	ReadmePreview string   `json:"readme_preview,omitempty"`
	DefaultBranch string   `json:"default_branch,omitempty"`
	License       string   `json:"license,omitempty"`
	Archived      bool     `json:"archived"`
	Fork          bool     `json:"fork"`
	Private       bool     `json:"private"`
}

// SearchRequest is the POST /search-repo body. Query is a search term or a GitHub URL.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse is the POST /search-repo result.
type SearchResponse struct {
	Query           string           `json:"query"`
	SearchType      string           `json:"search_type"` // "search" or "url"
	Repositories    []RepositoryInfo `json:"repositories"`
	AIPrerequisites []string         `json:"ai_prerequisites,omitempty"`
	TotalCount      int              `json:"total_count"`
}

// GeneratePlanRequest is the POST /generate-plan body. Exactly one field is expected.
type GeneratePlanRequest struct {
	RepositoryID   int             `json:"repository_id,omitempty"`
	RepositoryURL  string          `json:"repository_url,omitempty"`
	RepositoryInfo *RepositoryInfo `json:"repository_info,omitempty"`
}

// GeneratePlanResponse is the POST /generate-plan result.
type GeneratePlanResponse struct {
	Success        bool            `json:"success"`
	LearningPlan   *LearningPlan   `json:"learning_plan,omitempty"`
	RepositoryInfo *RepositoryInfo `json:"repository_info,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// CodingExerciseSubmission is the POST /validate-code body.
type CodingExerciseSubmission struct {
	ExerciseID string `json:"exercise_id"`
	UserCode   string `json:"user_code"`
	StepNumber int    `json:"step_number"`
}

// ValidationResult is the one-shot POST /validate-code result. It is never persisted.
type ValidationResult struct {
	ExerciseID      string   `json:"exercise_id"`
	IsCorrect       bool     `json:"is_correct"`
	Feedback        string   `json:"feedback"`
	Hints           []string `json:"hints"`
	Score           float64  `json:"score"`
	ExecutionResult string   `json:"execution_result,omitempty"`
	ErrorMessage    string   `json:"error_message,omitempty"`
}
