package types

// JobSettings controls how bullets are rewritten
type JobSettings struct {
	Tone     string `json:"tone"`     // rewriting tone, e.g. "concise"
	MaxLen   int    `json:"maxLen"`   // maximum words per rewritten bullet
	Variants int    `json:"variants"` // number of rewrite variants per bullet
}

// JobInput represents one revision job submitted by a caller
type JobInput struct {
	JobID        string      `json:"jobId,omitempty"` // generated when absent
	Role         string      `json:"role"`
	Description  string      `json:"description"`
	Bullets      []string    `json:"bullets"`
	ExtraContext string      `json:"extraContext,omitempty"`
	Settings     JobSettings `json:"settings"`
}

// Signals represents the structured keyword extraction from a job description
type Signals struct {
	TopTerms    []string            `json:"topTerms"` // priority order, capped at 25
	Weights     map[string]float64  `json:"weights,omitempty"`
	Synonyms    map[string][]string `json:"synonyms,omitempty"`
	Themes      map[string][]string `json:"themes,omitempty"`
	SoftSkills  []string            `json:"softSkills,omitempty"`
	HardTools   []string            `json:"hardTools,omitempty"`
	DomainTerms []string            `json:"domainTerms,omitempty"`
}

// RewriteVariant is one generated rewrite of a bullet with a short rationale
type RewriteVariant struct {
	Text      string `json:"text"`
	Rationale string `json:"rationale"`
}

// BulletScores holds the 3-axis quality score for a rewritten bullet
type BulletScores struct {
	Relevance int `json:"relevance"` // 0-100
	Impact    int `json:"impact"`    // 0-100
	Clarity   int `json:"clarity"`   // 0-100
}

// BulletDiff summarizes what changed between the original and revised text
type BulletDiff struct {
	Removed    []string `json:"removed"`
	AddedTerms []string `json:"addedTerms"`
}

// BulletResult is the final per-bullet outcome, one per input bullet in input order
type BulletResult struct {
	Original string       `json:"original"`
	Revised  []string     `json:"revised"`
	Scores   BulletScores `json:"scores"`
	Notes    string       `json:"notes"`
	Diff     BulletDiff   `json:"diff"`
}

// Coverage partitions the top signal terms into those present in the revised
// bullets and those absent
type Coverage struct {
	Hit  []string `json:"hit"`
	Miss []string `json:"miss"`
}

// Summary is the job-level rollup included in every JobOutput
type Summary struct {
	Role     string   `json:"role"`
	TopTerms []string `json:"topTerms"`
	Coverage Coverage `json:"coverage"`
}

// LogEntry is one stage event recorded while a job runs
type LogEntry struct {
	TS    string `json:"ts"` // RFC3339 UTC
	Level string `json:"level"`
	Stage string `json:"stage"`
	Msg   string `json:"msg"`
	JobID string `json:"jobId,omitempty"`
}

// JobOutput is the terminal result of a successfully completed job
type JobOutput struct {
	JobID    string         `json:"jobId"`
	Summary  Summary        `json:"summary"`
	Results  []BulletResult `json:"results"`
	RedFlags []string       `json:"redFlags"`
	Logs     []LogEntry     `json:"logs"`
}

// ExtractSignalsInput is the input for model-backed signal extraction
type ExtractSignalsInput struct {
	Description string `json:"description"`
}

// ProcessBulletsInput is the input for the fused rewrite-and-score operation
type ProcessBulletsInput struct {
	Role         string      `json:"role"`
	Bullets      []string    `json:"bullets"`
	Signals      Signals     `json:"signals"`
	ExtraContext string      `json:"extraContext,omitempty"`
	Settings     JobSettings `json:"settings"`
}

// ProcessedBullet is one rewritten-and-scored bullet from a batch call. The
// index refers back to the position in ProcessBulletsInput.Bullets; callers
// re-associate by index, never by text matching.
type ProcessedBullet struct {
	BulletIndex int              `json:"bulletIndex"`
	Variants    []RewriteVariant `json:"variants"`
	Scores      BulletScores     `json:"scores"`
}

// ProcessBulletsOutput is the batch result of the fused operation
type ProcessBulletsOutput struct {
	Results []ProcessedBullet `json:"results"`
}

// CheckConsistencyInput is the input for the factual-consistency check
type CheckConsistencyInput struct {
	Original  string   `json:"original"`
	Revised   string   `json:"revised"`
	HardTools []string `json:"hardTools,omitempty"`
}

// ConsistencyViolation is one fabrication finding from the consistency check
type ConsistencyViolation struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// CheckConsistencyOutput reports whether a revised bullet stays factually
// consistent with its original
type CheckConsistencyOutput struct {
	IsConsistent bool                   `json:"isConsistent"`
	Violations   []ConsistencyViolation `json:"violations"`
}
