package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Conceptual-Machines/grammar-school-go/gs"
	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	// Role constants
	userRole       = "user"
	developerRole  = "developer"
	maxOutputTrunc = 200

	// Reasoning effort levels
	reasoningNone    = "none"
	reasoningMinimal = "minimal"
	reasoningLow     = "low"
	reasoningMedium  = "medium"
	reasoningHigh    = "high"

	// Provider name
	providerNameOpenAI = "openai"

	customToolCallType = "custom_tool_call"
	responsesURL       = "https://api.openai.com/v1/responses"
)

// modelsWithReasoning lists models that accept the reasoning parameter.
var modelsWithReasoning = map[string]bool{
	"gpt-5":        true,
	"gpt-5-mini":   true,
	"gpt-5-nano":   true,
	"gpt-5.1":      true,
	"gpt-5.1-mini": true,
	"gpt-5.1-nano": true,
}

// OpenAIProvider implements Provider and Embedder using OpenAI's Responses and Embeddings APIs
type OpenAIProvider struct {
	client     *openai.Client
	apiKey     string // for raw HTTP requests (CFG tools)
	httpClient *http.Client
	baseURL    string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client:     &client,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		baseURL:    responsesURL,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Generate implements non-streaming generation using OpenAI's Responses API
func (p *OpenAIProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()

	transaction := sentry.StartTransaction(ctx, "openai.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameOpenAI)
	transaction.SetTag("cfg", fmt.Sprintf("%t", request.CFGGrammar != nil))

	params := p.buildRequestParams(request)

	span := transaction.StartChild("openai.api_call")
	defer span.Finish()

	// The SDK has no typed CFG tool yet, so grammar-constrained calls go over raw HTTP
	if request.CFGGrammar != nil {
		resp, err := p.generateWithCFG(ctx, params, request.CFGGrammar)
		if err != nil {
			transaction.SetTag("success", "false")
			sentry.CaptureException(err)
			return nil, fmt.Errorf("openai request failed: %w", err)
		}
		transaction.SetTag("success", "true")
		log.Printf("✅ OPENAI CFG GENERATION COMPLETED in %v (%d chars)", time.Since(startTime), len(resp.RawOutput))
		return resp, nil
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		log.Printf("❌ OPENAI REQUEST FAILED after %v: %v", time.Since(startTime), err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	output := extractAndCleanTextOutput(resp.OutputText())
	if output == "" {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("openai returned empty output")
	}
	if request.OutputSchema != nil && !json.Valid([]byte(output)) {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("openai returned invalid JSON for schema %s: %s", request.OutputSchema.Name, truncateString(output, maxOutputTrunc))
	}

	usage := Usage{
		InputTokens:     int(resp.Usage.InputTokens),
		OutputTokens:    int(resp.Usage.OutputTokens),
		TotalTokens:     int(resp.Usage.TotalTokens),
		ReasoningTokens: int(resp.Usage.OutputTokensDetails.ReasoningTokens),
	}
	logUsageStats(providerNameOpenAI, usage)
	transaction.SetTag("success", "true")
	log.Printf("✅ OPENAI GENERATION COMPLETED in %v", time.Since(startTime))

	return &GenerationResponse{RawOutput: output, Usage: usage}, nil
}

// Embed returns the embedding vector for text.
func (p *OpenAIProvider) Embed(ctx context.Context, model, text string) ([]float32, Usage, error) {
	span := sentry.StartSpan(ctx, "openai.embed")
	span.SetTag("model", model)
	defer span.Finish()

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, Usage{}, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, Usage{}, fmt.Errorf("openai embedding returned no data")
	}

	values := resp.Data[0].Embedding
	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v)
	}
	usage := Usage{
		InputTokens: int(resp.Usage.PromptTokens),
		TotalTokens: int(resp.Usage.TotalTokens),
	}
	return vec, usage, nil
}

// buildRequestParams converts GenerationRequest to OpenAI-specific ResponseNewParams
func (p *OpenAIProvider) buildRequestParams(request *GenerationRequest) responses.ResponseNewParams {
	inputItems := responses.ResponseInputParam{}

	for _, item := range request.InputArray {
		role, hasRole := item["role"].(string)
		content, hasContent := item["content"].(string)
		if !hasRole || !hasContent {
			continue
		}

		roleEnum := responses.EasyInputMessageRoleUser
		if role == developerRole {
			roleEnum = responses.EasyInputMessageRoleDeveloper
		}

		inputItems = append(inputItems,
			responses.ResponseInputItemParamOfMessage(content, roleEnum),
		)
	}

	params := responses.ResponseNewParams{
		Model: request.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
		Instructions: openai.String(request.SystemPrompt),
	}

	if modelsWithReasoning[request.Model] {
		params.Reasoning = shared.ReasoningParam{
			Effort: reasoningEffort(request.ReasoningMode),
		}
	}

	if request.OutputSchema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(
				request.OutputSchema.Name,
				request.OutputSchema.Schema,
			),
		}
	}

	return params
}

func reasoningEffort(mode string) shared.ReasoningEffort {
	switch mode {
	case reasoningMinimal, reasoningLow:
		return responses.ReasoningEffortLow
	case reasoningMedium:
		return responses.ReasoningEffortMedium
	case reasoningHigh:
		return responses.ReasoningEffortHigh
	case reasoningNone:
		return shared.ReasoningEffort("none")
	default:
		return responses.ReasoningEffortLow
	}
}

// generateWithCFG sends the request with a grammar-school CFG tool attached and
// returns the DSL from the custom tool call.
func (p *OpenAIProvider) generateWithCFG(ctx context.Context, params responses.ResponseNewParams, cfg *CFGConfig) (*GenerationResponse, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	var paramsMap map[string]any
	if err := json.Unmarshal(paramsJSON, &paramsMap); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}

	syntax := cfg.Syntax
	if syntax == "" {
		syntax = "lark"
	}
	paramsMap["tools"] = []any{gs.BuildOpenAICFGTool(gs.CFGConfig{
		ToolName:    cfg.ToolName,
		Description: cfg.Description,
		Grammar:     gs.CleanGrammarForCFG(cfg.Grammar),
		Syntax:      syntax,
	})}
	paramsMap["text"] = gs.GetOpenAITextFormatForCFG()
	paramsMap["parallel_tool_calls"] = false

	body, err := json.Marshal(paramsMap)
	if err != nil {
		return nil, fmt.Errorf("marshal CFG request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			log.Printf("⚠️  Failed to close response body: %v", closeErr)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, truncateString(string(respBody), maxOutputTrunc))
	}

	return extractDSLFromResponse(respBody)
}

// extractDSLFromResponse pulls the custom tool call input out of a raw Responses payload
func extractDSLFromResponse(body []byte) (*GenerationResponse, error) {
	var raw struct {
		Output []struct {
			Type  string `json:"type"`
			Input string `json:"input"`
		} `json:"output"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	for _, item := range raw.Output {
		if item.Type == customToolCallType && strings.TrimSpace(item.Input) != "" {
			return &GenerationResponse{
				RawOutput: strings.TrimSpace(item.Input),
				Usage: Usage{
					InputTokens:  raw.Usage.InputTokens,
					OutputTokens: raw.Usage.OutputTokens,
					TotalTokens:  raw.Usage.TotalTokens,
				},
			}, nil
		}
	}
	return nil, fmt.Errorf("no %s found in response", customToolCallType)
}

// extractAndCleanTextOutput strips markdown fences some models wrap JSON in
func extractAndCleanTextOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

func logUsageStats(provider string, usage Usage) {
	log.Printf("📊 %s usage: input=%d output=%d total=%d reasoning=%d",
		provider, usage.InputTokens, usage.OutputTokens, usage.TotalTokens, usage.ReasoningTokens)
}

// truncateString truncates a string to a maximum length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
