package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"bulletsmith/internal/config"
	bulletsmithErrors "bulletsmith/internal/errors"
	"bulletsmith/internal/retry"
	"bulletsmith/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// modelCheckTimeout bounds the model availability probe during health checks
const modelCheckTimeout = 10 * time.Second

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client       *genai.Client
	config       *config.OperationAIConfig
	retryPolicy  retry.Policy
	genBreaker   *Breaker[*genai.GenerateContentResponse]
	modelBreaker *Breaker[*genai.Model]
	logger       *bulletsmithErrors.Logger
}

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance for a specific operation
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *bulletsmithErrors.Logger) (*GeminiProvider, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
		HTTPClient: &http.Client{
			Timeout: *cfg.Timeout,
		},
	})
	if err != nil {
		return nil, bulletsmithErrors.NewAIError(bulletsmithErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	policy := retry.Policy{
		MaxRetries:   *cfg.MaxRetries,
		BaseDelay:    *cfg.RetryBaseDelay,
		MaxDelay:     *cfg.RetryMaxDelay,
		JitterFactor: *cfg.RetryJitter,
		Retryable:    IsRetryableModelError,
	}

	return &GeminiProvider{
		client:       client,
		config:       cfg,
		retryPolicy:  policy,
		genBreaker:   NewGenerationBreaker(operationType, cfg, logger),
		modelBreaker: NewModelBreaker(operationType, cfg, logger),
		logger:       logger,
	}, nil
}

// ModelInfo reports whether the configured model is reachable, plus the
// metadata the API returns for it.
type ModelInfo struct {
	Name        string `json:"name"`
	Available   bool   `json:"available"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo probes the configured model through the model breaker so a
// flapping API does not hammer the metadata endpoint.
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"provider", g.config.Provider,
		"display_name", info.DisplayName,
		"version", info.Version)

	return info
}

// IsRetryableModelError reports whether a provider error should trigger a
// retry. Timeouts and transient HTTP statuses are retryable; auth and invalid
// input errors are not.
func IsRetryableModelError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		// Timeouts and connection failures are both worth retrying
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// executeAIOperation is a generic helper to run AI operations with common tracing,
// circuit breaker, retry, and parsing logic. Each attempt gets its own timeout so
// a hung call degrades into a retryable failure instead of blocking the job.
func executeAIOperation[Out any](
	g *GeminiProvider,
	ctx context.Context,
	operationName, userPrompt, systemPrompt string,
	genaiConfig *genai.GenerateContentConfig,
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	tracer := otel.Tracer("bulletsmith.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+operationName)
	defer span.End()

	// The system prompt rides the request config rather than the prompt text.
	if *g.config.UseSystemPrompts && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	span.SetAttributes(append(spanAttributes,
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Float64("ai.temperature", float64(*g.config.Temperature)),
	)...)

	result, err := g.genBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return retry.Do(ctx, g.retryPolicy, g.logger, operationName,
			func(ctx context.Context) (*genai.GenerateContentResponse, error) {
				callCtx, cancel := context.WithTimeout(ctx, *g.config.Timeout)
				defer cancel()
				return g.client.Models.GenerateContent(callCtx, g.config.Model, genai.Text(userPrompt), genaiConfig)
			})
	})

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, bulletsmithErrors.NewAIError(bulletsmithErrors.ErrCodeAIServiceFailed,
			"Failed to generate content for "+operationName, err)
	}

	if err := json.Unmarshal([]byte(result.Text()), &output); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, bulletsmithErrors.NewAIError("AI_RESPONSE_PARSE_FAILED",
			"Failed to parse AI response for "+operationName, err)
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, usage, nil
}

// weightedTerm pairs one term with its importance score
type weightedTerm struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// termSynonyms lists alternative phrasings for one term
type termSynonyms struct {
	Term     string   `json:"term"`
	Synonyms []string `json:"synonyms"`
}

// themeGroup groups related terms under a theme label
type themeGroup struct {
	Theme string   `json:"theme"`
	Terms []string `json:"terms"`
}

// signalsWire is the schema-friendly extraction response. Gemini response
// schemas cannot express open-ended JSON maps, so weights, synonyms, and
// themes come back as arrays and are folded into maps here.
type signalsWire struct {
	TopTerms    []string       `json:"topTerms"`
	Weights     []weightedTerm `json:"weights"`
	Synonyms    []termSynonyms `json:"synonyms"`
	Themes      []themeGroup   `json:"themes"`
	SoftSkills  []string       `json:"softSkills"`
	HardTools   []string       `json:"hardTools"`
	DomainTerms []string       `json:"domainTerms"`
}

func (w signalsWire) toSignals() types.Signals {
	signals := types.Signals{
		TopTerms:    w.TopTerms,
		Weights:     make(map[string]float64, len(w.Weights)),
		Synonyms:    make(map[string][]string, len(w.Synonyms)),
		Themes:      make(map[string][]string, len(w.Themes)),
		SoftSkills:  w.SoftSkills,
		HardTools:   w.HardTools,
		DomainTerms: w.DomainTerms,
	}
	if len(signals.TopTerms) > types.MaxTopTerms {
		signals.TopTerms = signals.TopTerms[:types.MaxTopTerms]
	}
	for _, wt := range w.Weights {
		signals.Weights[wt.Term] = wt.Weight
	}
	for _, ts := range w.Synonyms {
		signals.Synonyms[ts.Term] = ts.Synonyms
	}
	for _, tg := range w.Themes {
		signals.Themes[tg.Theme] = tg.Terms
	}
	return signals
}

// ExtractSignals implements Provider for model-backed signal extraction
func (g *GeminiProvider) ExtractSignals(ctx context.Context, input types.ExtractSignalsInput) (types.Signals, *TokenUsage, error) {
	systemPrompt, userPrompt := g.getPromptsForExtract(input.Description)
	genCfg := g.buildExtractSchema()

	wire, tokenUsage, err := executeAIOperation[signalsWire](
		g,
		ctx,
		"extract_signals",
		userPrompt,
		systemPrompt,
		genCfg,
		attribute.Int("input.description_length", len(input.Description)),
	)
	if err != nil {
		return types.Signals{}, nil, err
	}

	signals := wire.toSignals()
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.top_terms", len(signals.TopTerms)),
			attribute.Int("output.hard_tools", len(signals.HardTools)),
		)
	}

	return signals, tokenUsage, nil
}

// ProcessBullets implements Provider for the fused rewrite-and-score operation
func (g *GeminiProvider) ProcessBullets(ctx context.Context, input types.ProcessBulletsInput) (types.ProcessBulletsOutput, *TokenUsage, error) {
	systemPrompt, userPrompt := g.getPromptsForProcess(input)
	genCfg := g.buildProcessSchema()

	output, tokenUsage, err := executeAIOperation[types.ProcessBulletsOutput](
		g,
		ctx,
		"process_bullets",
		userPrompt,
		systemPrompt,
		genCfg,
		attribute.Int("input.bullet_count", len(input.Bullets)),
		attribute.Int("input.variants", input.Settings.Variants),
	)
	if err != nil {
		return types.ProcessBulletsOutput{}, nil, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int("output.result_count", len(output.Results)))
	}

	return output, tokenUsage, nil
}

// CheckConsistency implements Provider for the factual-consistency check
func (g *GeminiProvider) CheckConsistency(ctx context.Context, input types.CheckConsistencyInput) (types.CheckConsistencyOutput, *TokenUsage, error) {
	systemPrompt, userPrompt := g.getPromptsForConsistency(input)
	genCfg := g.buildConsistencySchema()

	output, tokenUsage, err := executeAIOperation[types.CheckConsistencyOutput](
		g,
		ctx,
		"check_consistency",
		userPrompt,
		systemPrompt,
		genCfg,
		attribute.Int("input.original_length", len(input.Original)),
		attribute.Int("input.revised_length", len(input.Revised)),
	)
	if err != nil {
		return types.CheckConsistencyOutput{}, nil, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Bool("output.consistent", output.IsConsistent),
			attribute.Int("output.violations", len(output.Violations)),
		)
	}

	return output, tokenUsage, nil
}

// GetCircuitBreakerStats reports the state of both breakers plus a combined
// health flag for the health endpoint.
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.genBreaker.Stats(),
		"model_operations": g.modelBreaker.Stats(),
		"overall_healthy":  g.genBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider. The genai client holds no connections that
// need explicit teardown.
func (g *GeminiProvider) Close() error {
	return nil
}

// buildExtractSchema creates the response schema for signal extraction
func (g *GeminiProvider) buildExtractSchema() *genai.GenerateContentConfig {
	stringArray := &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"topTerms": stringArray,
				"weights": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"term":   {Type: genai.TypeString},
							"weight": {Type: genai.TypeNumber},
						},
						Required: []string{"term", "weight"},
					},
				},
				"synonyms": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"term":     {Type: genai.TypeString},
							"synonyms": stringArray,
						},
						Required: []string{"term", "synonyms"},
					},
				},
				"themes": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"theme": {Type: genai.TypeString},
							"terms": stringArray,
						},
						Required: []string{"theme", "terms"},
					},
				},
				"softSkills":  stringArray,
				"hardTools":   stringArray,
				"domainTerms": stringArray,
			},
			Required: []string{"topTerms", "weights", "softSkills", "hardTools", "domainTerms"},
		},
	}

	if *g.config.Temperature > 0 {
		genCfg.Temperature = g.config.Temperature
	}

	return genCfg
}

// buildProcessSchema creates the response schema for the fused operation
func (g *GeminiProvider) buildProcessSchema() *genai.GenerateContentConfig {
	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"results": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"bulletIndex": {Type: genai.TypeInteger},
							"variants": {
								Type: genai.TypeArray,
								Items: &genai.Schema{
									Type: genai.TypeObject,
									Properties: map[string]*genai.Schema{
										"text":      {Type: genai.TypeString},
										"rationale": {Type: genai.TypeString},
									},
									Required: []string{"text", "rationale"},
								},
							},
							"scores": {
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"relevance": {Type: genai.TypeInteger},
									"impact":    {Type: genai.TypeInteger},
									"clarity":   {Type: genai.TypeInteger},
								},
								Required: []string{"relevance", "impact", "clarity"},
							},
						},
						Required: []string{"bulletIndex", "variants", "scores"},
					},
				},
			},
			Required: []string{"results"},
		},
	}

	if *g.config.Temperature > 0 {
		genCfg.Temperature = g.config.Temperature
	}

	return genCfg
}

// buildConsistencySchema creates the response schema for consistency checks
func (g *GeminiProvider) buildConsistencySchema() *genai.GenerateContentConfig {
	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"isConsistent": {Type: genai.TypeBoolean},
				"violations": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"type":   {Type: genai.TypeString},
							"detail": {Type: genai.TypeString},
						},
						Required: []string{"type", "detail"},
					},
				},
			},
			Required: []string{"isConsistent", "violations"},
		},
	}

	if *g.config.Temperature > 0 {
		genCfg.Temperature = g.config.Temperature
	}

	return genCfg
}

// getPromptsForExtract returns system and user prompts for signal extraction
func (g *GeminiProvider) getPromptsForExtract(description string) (string, string) {
	systemPrompt := g.getSystemPrompt("signals")
	userPrompt := g.getUserPrompt("signals")

	return systemPrompt, fmt.Sprintf(userPrompt, description)
}

// getPromptsForProcess returns system and user prompts for the fused operation.
// The user template takes, in order: role, top terms, soft skills, hard tools,
// domain terms, tone, max words, variant count, extra context, bullet list.
func (g *GeminiProvider) getPromptsForProcess(input types.ProcessBulletsInput) (string, string) {
	systemPrompt := g.getSystemPrompt("process")
	userPrompt := g.getUserPrompt("process")

	var bullets strings.Builder
	for i, bullet := range input.Bullets {
		fmt.Fprintf(&bullets, "bulletIndex %d: %s\n", i, bullet)
	}

	formattedUserPrompt := fmt.Sprintf(userPrompt,
		input.Role,
		joinLimited(input.Signals.TopTerms, 15),
		joinLimited(input.Signals.SoftSkills, 10),
		joinLimited(input.Signals.HardTools, 10),
		joinLimited(input.Signals.DomainTerms, 10),
		input.Settings.Tone,
		input.Settings.MaxLen,
		input.Settings.Variants,
		orNone(input.ExtraContext),
		bullets.String(),
	)

	return systemPrompt, formattedUserPrompt
}

// getPromptsForConsistency returns system and user prompts for the consistency
// check. The user template takes the original text, the revised text, and an
// optional known-hard-tools context block.
func (g *GeminiProvider) getPromptsForConsistency(input types.CheckConsistencyInput) (string, string) {
	systemPrompt := g.getSystemPrompt("validate")
	userPrompt := g.getUserPrompt("validate")

	hardToolsContext := ""
	if len(input.HardTools) > 0 {
		hardToolsContext = fmt.Sprintf(
			"KNOWN HARD TOOLS from the job description: %s\nThese are factual claims - flag if added to revised but NOT in original.",
			joinLimited(input.HardTools, 10))
	}

	formattedUserPrompt := fmt.Sprintf(userPrompt, input.Original, input.Revised, hardToolsContext)

	return systemPrompt, formattedUserPrompt
}

// getSystemPrompt resolves the system prompt for an operation. File-loaded
// content wins over inline config, which wins over the built-in default.
func (g *GeminiProvider) getSystemPrompt(promptType string) string {
	loaded := config.GetPromptsForOperation(promptType).SystemPrompts
	inline := g.config.CustomPrompts.SystemPrompts

	switch promptType {
	case "signals":
		return resolvePrompt(loaded.ExtractSignals, inline.ExtractSignals, DefaultSystemPrompts.ExtractSignals)
	case "process":
		return resolvePrompt(loaded.ProcessBullets, inline.ProcessBullets, DefaultSystemPrompts.ProcessBullets)
	case "validate":
		return resolvePrompt(loaded.CheckConsistency, inline.CheckConsistency, DefaultSystemPrompts.CheckConsistency)
	default:
		return ""
	}
}

// getUserPrompt resolves the user prompt template with the same precedence.
func (g *GeminiProvider) getUserPrompt(promptType string) string {
	loaded := config.GetPromptsForOperation(promptType).UserPrompts
	inline := g.config.CustomPrompts.UserPrompts

	switch promptType {
	case "signals":
		return resolvePrompt(loaded.ExtractSignals, inline.ExtractSignals, DefaultUserPrompts.ExtractSignals)
	case "process":
		return resolvePrompt(loaded.ProcessBullets, inline.ProcessBullets, DefaultUserPrompts.ProcessBullets)
	case "validate":
		return resolvePrompt(loaded.CheckConsistency, inline.CheckConsistency, DefaultUserPrompts.CheckConsistency)
	default:
		return ""
	}
}

// TokenUsage carries the token counts the model reported for one call.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// extractTokenUsage pulls usage metadata off a response, or nil when the API
// did not report any.
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}
	meta := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(meta.PromptTokenCount),
		OutputTokens: int64(meta.CandidatesTokenCount),
		TotalTokens:  int64(meta.TotalTokenCount),
	}
}

// resolvePrompt prefers file-loaded content over inline config, falling back
// to the built-in default when both are empty.
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

func joinLimited(items []string, limit int) string {
	if len(items) == 0 {
		return "None identified"
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return strings.Join(items, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
