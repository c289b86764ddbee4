package domain

// GoldenCase is one labelled evaluation question.
type GoldenCase struct {
	// Question is asked through the retrieval path.
	Question string `json:"question"`

	// ExpectedSources are doc ids, paths or file names that should be retrieved.
	ExpectedSources []string `json:"expected_sources"`

	// Role optionally applies a role filter.
	Role string `json:"role,omitempty"`
}

// EvalCaseResult is the breakdown for one golden case.
type EvalCaseResult struct {
	Question         string   `json:"question"`
	ExpectedSources  []string `json:"expected_sources"`
	RetrievedSources []string `json:"retrieved_sources"`
	Hits             []string `json:"hits"`
	Misses           []string `json:"misses"`
	BestScore        float64  `json:"best_score"`
	Error            string   `json:"error,omitempty"`
}

// EvalReport summarises recall@k over a golden set.
type EvalReport struct {
	K             int              `json:"k"`
	ExpectedTotal int              `json:"expected_total"`
	HitTotal      int              `json:"hit_total"`
	RecallAtK     float64          `json:"recall_at_k"`
	PerQuestion   []EvalCaseResult `json:"per_question"`
}
