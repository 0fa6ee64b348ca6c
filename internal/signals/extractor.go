package signals

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bulletsmith/internal/errors"
	"bulletsmith/internal/types"
)

// Config tunes the local heuristic extractor. Each weight is the confidence
// contribution of one signal category; the sum is capped at 1.0. Results
// whose confidence falls below ConfidenceThreshold are meant to be replaced
// by a model-backed extraction.
type Config struct {
	EntityWeight        float64
	ToolWeight          float64
	SoftSkillWeight     float64
	TermWeight          float64
	DomainWeight        float64
	ConfidenceThreshold float64
	MaxTerms            int
}

// DefaultConfig returns the stock extraction weights
func DefaultConfig() Config {
	return Config{
		EntityWeight:        0.3,
		ToolWeight:          0.2,
		SoftSkillWeight:     0.2,
		TermWeight:          0.3,
		DomainWeight:        0.1,
		ConfidenceThreshold: 0.7,
		MaxTerms:            25,
	}
}

var toolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:Python|Java|JavaScript|TypeScript|C\+\+|C#|Go|Rust|Swift|Kotlin)\b`),
	regexp.MustCompile(`(?i)\b(?:React|Angular|Vue|Node\.?js|Express|Django|Flask|Spring|Laravel)\b`),
	regexp.MustCompile(`(?i)\b(?:AWS|Azure|GCP|Google Cloud|Docker|Kubernetes|Terraform)\b`),
	regexp.MustCompile(`(?i)\b(?:SQL|PostgreSQL|MySQL|MongoDB|Redis|Elasticsearch)\b`),
	regexp.MustCompile(`(?i)\b(?:Git|GitHub|GitLab|Jenkins|CI/CD|DevOps)\b`),
	regexp.MustCompile(`(?i)\b(?:Salesforce|HubSpot|Marketo|Pardot|Zapier|Monday\.com)\b`),
	regexp.MustCompile(`(?i)\b(?:Tableau|Power BI|Google Analytics|Mixpanel|Amplitude)\b`),
	regexp.MustCompile(`(?i)\b(?:Figma|Sketch|Adobe Creative Suite|Canva)\b`),
}

var softSkillPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:leadership|teamwork|collaboration|communication|problem.?solving)\b`),
	regexp.MustCompile(`(?i)\b(?:analytical|critical thinking|attention to detail|adaptability)\b`),
	regexp.MustCompile(`(?i)\b(?:project management|time management|organizational|strategic)\b`),
	regexp.MustCompile(`(?i)\b(?:customer service|stakeholder management|cross.functional)\b`),
}

var domainPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:B2B|B2C|SaaS|PaaS|IaaS|API|SDK|MVP|ROI|KPI)\b`),
	regexp.MustCompile(`(?i)\b(?:healthcare|fintech|e-commerce|retail|manufacturing)\b`),
	regexp.MustCompile(`(?i)\b(?:startup|enterprise|SMB|mid-market)\b`),
	regexp.MustCompile(`(?i)\b(?:agile|scrum|waterfall|kanban|lean|devops)\b`),
}

var (
	entityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*\b`)
	wordPattern   = regexp.MustCompile(`[a-z][a-z0-9+#./-]*`)
)

// stopwords excluded from term ranking
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "its": true, "of": true,
	"on": true, "or": true, "our": true, "such": true, "that": true, "the": true,
	"their": true, "this": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "you": true, "your": true, "we": true,
	"who": true, "what": true, "all": true, "can": true, "they": true,
}

// Extractor derives Signals from description text using regex pattern
// matching and term-frequency ranking, with no external calls. It reports a
// confidence score so callers can decide when the cheap local result is good
// enough and when to pay for a model-backed extraction instead.
type Extractor struct {
	cfg    Config
	logger *errors.Logger
}

// NewExtractor creates an extractor with the given weights. Zero-valued
// fields fall back to DefaultConfig.
func NewExtractor(cfg Config, logger *errors.Logger) *Extractor {
	defaults := DefaultConfig()
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = defaults.MaxTerms
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Threshold returns the confidence level below which callers should fall
// back to model-backed extraction
func (e *Extractor) Threshold() float64 {
	return e.cfg.ConfidenceThreshold
}

// Extract runs the local heuristic extraction over normalized description
// text. The returned confidence is in [0, 1]: each signal category that
// yields matches adds its configured weight. Synonyms and themes are never
// produced locally; only the model-backed extractor fills those.
func (e *Extractor) Extract(text string) (types.Signals, float64) {
	signals := types.Signals{
		Weights:  map[string]float64{},
		Synonyms: map[string][]string{},
		Themes:   map[string][]string{},
	}
	confidence := 0.0
	titler := cases.Title(language.English, cases.NoLower)

	if entityPattern.MatchString(text) {
		confidence += e.cfg.EntityWeight
	}

	signals.HardTools = matchPatterns(toolPatterns, text, titler)
	if len(signals.HardTools) > 0 {
		confidence += e.cfg.ToolWeight
	}

	signals.SoftSkills = matchPatterns(softSkillPatterns, text, titler)
	if len(signals.SoftSkills) > 0 {
		confidence += e.cfg.SoftSkillWeight
	}

	signals.TopTerms, signals.Weights = rankTerms(text, e.cfg.MaxTerms)
	if len(signals.TopTerms) > 0 {
		confidence += e.cfg.TermWeight
	}

	signals.DomainTerms = matchDomainTerms(text, titler)
	if len(signals.DomainTerms) > 0 {
		confidence += e.cfg.DomainWeight
	}

	if len(signals.TopTerms) == 0 && len(signals.HardTools) == 0 && len(signals.SoftSkills) == 0 {
		confidence = 0
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	if e.logger != nil {
		e.logger.Debug("Local extraction completed",
			"confidence", fmt.Sprintf("%.2f", confidence),
			"top_terms", len(signals.TopTerms),
			"hard_tools", len(signals.HardTools),
			"soft_skills", len(signals.SoftSkills))
	}

	return signals, confidence
}

func matchPatterns(patterns []*regexp.Regexp, text string, titler cases.Caser) []string {
	seen := make(map[string]bool)
	var matches []string
	for _, pattern := range patterns {
		for _, m := range pattern.FindAllString(text, -1) {
			canonical := titler.String(m)
			if !seen[canonical] {
				seen[canonical] = true
				matches = append(matches, canonical)
			}
		}
	}
	sort.Strings(matches)
	return matches
}

// matchDomainTerms uppercases short acronym-style matches (SaaS, ROI) and
// title-cases the rest, mirroring how the terms read in job postings
func matchDomainTerms(text string, titler cases.Caser) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, pattern := range domainPatterns {
		for _, m := range pattern.FindAllString(text, -1) {
			canonical := titler.String(m)
			if len(m) <= 5 {
				canonical = strings.ToUpper(m)
			}
			if !seen[canonical] {
				seen[canonical] = true
				terms = append(terms, canonical)
			}
		}
	}
	sort.Strings(terms)
	return terms
}

// rankTerms scores unigrams and bigrams by frequency relative to the most
// frequent term. Terms scoring at or below 0.1 are dropped; top terms are
// capped at maxTerms while the weight map keeps every scored term.
func rankTerms(text string, maxTerms int) ([]string, map[string]float64) {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int)
	var kept []string
	for _, w := range words {
		if stopwords[w] || len(w) < 3 {
			continue
		}
		kept = append(kept, w)
		counts[w]++
	}
	for i := 0; i+1 < len(kept); i++ {
		counts[kept[i]+" "+kept[i+1]]++
	}

	if len(counts) == 0 {
		return nil, map[string]float64{}
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	type termScore struct {
		term  string
		score float64
	}
	scored := make([]termScore, 0, len(counts))
	for term, c := range counts {
		score := float64(c) / float64(maxCount)
		if score > 0.1 {
			scored = append(scored, termScore{term: term, score: score})
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].term < scored[j].term
	})

	weights := make(map[string]float64, len(scored))
	var top []string
	for i, ts := range scored {
		weights[ts.term] = ts.score
		if i < maxTerms {
			top = append(top, ts.term)
		}
	}
	return top, weights
}
