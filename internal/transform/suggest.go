package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultSuggesterModel is the Gemini model used for rule suggestion.
const DefaultSuggesterModel = "gemini-2.5-flash"

// RuleSuggester proposes categorization rules from samples of uncategorized
// transaction descriptions. Suggestions are advisory: they are returned to
// the caller for review and never applied automatically, so the
// deterministic categorization path stays deterministic.
type RuleSuggester struct {
	model string
}

// NewRuleSuggester creates a suggester for the given model name
// (DefaultSuggesterModel when empty). Credentials come from the environment.
func NewRuleSuggester(model string) *RuleSuggester {
	if model == "" {
		model = DefaultSuggesterModel
	}
	return &RuleSuggester{model: model}
}

type suggestedRule struct {
	Name        string  `json:"name"`
	Keyword     string  `json:"keyword"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Confidence  float64 `json:"confidence"`
}

// Suggest sends uncategorized descriptions and the known category taxonomy to
// the model and returns proposed rules, disabled, for human review.
func (s *RuleSuggester) Suggest(ctx context.Context, descriptions, categories []string) ([]CategorizationRule, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	prompt :=
		"You are a transaction categorization assistant for a personal finance app.\n\n" +
			"Task:\n" +
			"- For the transaction descriptions below, propose keyword-based categorization rules.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output a JSON array of objects.\n\n" +
			"Each object must have these fields:\n" +
			"- \"name\": string, short human-readable rule name\n" +
			"- \"keyword\": string, lowercase substring to match in the description\n" +
			"- \"category\": string (one of the known categories below)\n" +
			"- \"subcategory\": string or empty\n" +
			"- \"confidence\": number between 0 and 1\n\n" +
			"Known categories:\n" + strings.Join(categories, ", ") + "\n\n" +
			"Descriptions:\n" + strings.Join(descriptions, "\n") + "\n\n" +
			"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Output must begin with \"[\" and end with \"]\".\n"

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("suggest rules: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("suggest rules: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("suggest rules: empty response from model")
	}

	var proposed []suggestedRule
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &proposed); err != nil {
		return nil, fmt.Errorf("suggest rules: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	rules := make([]CategorizationRule, 0, len(proposed))
	for _, p := range proposed {
		if p.Keyword == "" || p.Category == "" {
			continue
		}
		rules = append(rules, CategorizationRule{
			Name:     p.Name,
			Priority: 0,
			Conditions: []Condition{
				{Field: FieldDescription, Op: OpContains, Value: p.Keyword},
			},
			Category:    p.Category,
			Subcategory: p.Subcategory,
			Confidence:  p.Confidence,
			Enabled:     false, // advisory until a human enables it
		})
	}
	return rules, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
