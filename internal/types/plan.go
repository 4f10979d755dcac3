package types

// =============================================================================
// LEARNING PLAN MODEL
// =============================================================================
//
// A LearningPlan is produced by the generation backend and is immutable on the
// client, except for LearningStep.Completed which is a local overlay merged in
// from the progress store (see internal/progress).

// Blank is a named substitution slot inside a fill-in-the-blank template.
type Blank struct {
	Placeholder   string `json:"placeholder"`
	CorrectAnswer string `json:"correct_answer"`
	Hint          string `json:"hint"`
}

// CodingExercise is one exercise attached to a learning step.
type CodingExercise struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Difficulty      string        `json:"difficulty"`
	CodeTemplate    string        `json:"code_template"`
	Solution        string        `json:"solution"`
	Hints           []string      `json:"hints"`
	ValidationRules []string      `json:"validation_rules"`
	ExpectedOutput  string        `json:"expected_output,omitempty"`
	TestCases       []interface{} `json:"test_cases"`
	Blanks          []Blank       `json:"blanks,omitempty"`
}

// IsFillInTheBlank reports whether the exercise is edited slot by slot.
func (e CodingExercise) IsFillInTheBlank() bool {
	return len(e.Blanks) > 0
}

// LearningStep is one curriculum unit. Step is the ordinal, unique within a plan.
type LearningStep struct {
	Step               int              `json:"step"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	Duration           string           `json:"duration"`
	Resources          []string         `json:"resources"`
	Exercises          []string         `json:"exercises"`
	Completed          bool             `json:"completed"`
	CodingExercises    []CodingExercise `json:"coding_exercises"`
	ExercisesCompleted int              `json:"exercises_completed"`
	TotalExercises     int              `json:"total_exercises"`
}

// HasCodingExercises reports whether the step carries coding exercises.
func (s LearningStep) HasCodingExercises() bool {
	return len(s.CodingExercises) > 0
}

// Exercise returns the exercise with the given id.
func (s LearningStep) Exercise(id string) (CodingExercise, bool) {
	for _, ex := range s.CodingExercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return CodingExercise{}, false
}

// LearningPlan is the generated curriculum for a repository.
type LearningPlan struct {
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	DifficultyLevel     string         `json:"difficulty_level"`
	EstimatedDuration   string         `json:"estimated_duration"`
	Prerequisites       []string       `json:"prerequisites"`
	LearningObjectives  []string       `json:"learning_objectives"`
	TechnologiesCovered []string       `json:"technologies_covered"`
	LearningSteps       []LearningStep `json:"learning_steps"`
}

// Step returns the step with ordinal n.
func (p *LearningPlan) Step(n int) (LearningStep, bool) {
	if p == nil {
		return LearningStep{}, false
	}
	for _, s := range p.LearningSteps {
		if s.Step == n {
			return s, true
		}
	}
	return LearningStep{}, false
}

// CompletedSteps returns the ordinals of completed steps in plan order.
func (p *LearningPlan) CompletedSteps() []int {
	done := make([]int, 0, len(p.LearningSteps))
	for _, s := range p.LearningSteps {
		if s.Completed {
			done = append(done, s.Step)
		}
	}
	return done
}

// Clone returns a deep copy of the plan.
func (p LearningPlan) Clone() LearningPlan {
	out := p
	out.Prerequisites = cloneStrings(p.Prerequisites)
	out.LearningObjectives = cloneStrings(p.LearningObjectives)
	out.TechnologiesCovered = cloneStrings(p.TechnologiesCovered)
	if p.LearningSteps != nil {
		out.LearningSteps = make([]LearningStep, len(p.LearningSteps))
		for i, s := range p.LearningSteps {
			out.LearningSteps[i] = s.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the step.
func (s LearningStep) Clone() LearningStep {
	out := s
	out.Resources = cloneStrings(s.Resources)
	out.Exercises = cloneStrings(s.Exercises)
	if s.CodingExercises != nil {
		out.CodingExercises = make([]CodingExercise, len(s.CodingExercises))
		for i, ex := range s.CodingExercises {
			c := ex
			c.Hints = cloneStrings(ex.Hints)
			c.ValidationRules = cloneStrings(ex.ValidationRules)
			if ex.TestCases != nil {
				c.TestCases = append([]interface{}(nil), ex.TestCases...)
			}
			if ex.Blanks != nil {
				c.Blanks = append([]Blank(nil), ex.Blanks...)
			}
			out.CodingExercises[i] = c
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
