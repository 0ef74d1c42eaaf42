package observability

import (
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/magda-composer/internal/llm"
)

// Pricing constants
const (
	tokensPerKilo       = 1000.0
	costFormatPrecision = 6
	defaultPricedModel  = "gpt-5-mini"
)

// ModelPricing contains pricing information per 1K tokens
type ModelPricing struct {
	InputPricePer1K  float64 // Price per 1K input tokens in USD
	OutputPricePer1K float64 // Price per 1K output tokens in USD
}

// PricingTable contains pricing for the generation and embedding models we call
var PricingTable = map[string]ModelPricing{
	"gpt-5":                  {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
	"gpt-5-mini":             {InputPricePer1K: 0.00025, OutputPricePer1K: 0.002},
	"gpt-5-nano":             {InputPricePer1K: 0.00005, OutputPricePer1K: 0.0004},
	"gpt-5.1":                {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
	"gpt-4o":                 {InputPricePer1K: 0.0025, OutputPricePer1K: 0.01},
	"gpt-4o-mini":            {InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006},
	"gemini-2.5-flash":       {InputPricePer1K: 0.0003, OutputPricePer1K: 0.0025},
	"gemini-2.5-pro":         {InputPricePer1K: 0.00125, OutputPricePer1K: 0.01},
	"text-embedding-3-small": {InputPricePer1K: 0.00002},
	"text-embedding-3-large": {InputPricePer1K: 0.00013},
	"gemini-embedding-001":   {InputPricePer1K: 0.00015},
}

// CalculateCost calculates the cost in USD of one call.
// Reasoning tokens are billed as output and are already part of OutputTokens.
func CalculateCost(model string, usage llm.Usage) float64 {
	pricing, exists := PricingTable[strings.ToLower(model)]
	if !exists {
		pricing = PricingTable[defaultPricedModel]
	}

	inputCost := (float64(usage.InputTokens) / tokensPerKilo) * pricing.InputPricePer1K
	outputCost := (float64(usage.OutputTokens) / tokensPerKilo) * pricing.OutputPricePer1K
	return inputCost + outputCost
}

// FormatCost formats a cost value as a USD string
func FormatCost(cost float64) string {
	return "$" + strconv.FormatFloat(cost, 'f', costFormatPrecision, 64)
}
