package trails

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const systemInstruction = "You are an enthusiastic expert hiking guide. You prioritize safety and accurate details."

// Generator turns a prompt into the raw JSON text of a trail list.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator asks a Gemini model for structured JSON output.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.7)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemInstruction))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema()

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoTrails
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func responseSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"trails": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":           str(),
						"description":    str(),
						"difficulty":     str(),
						"length":         str(),
						"elevation_gain": str(),
						"best_season":    str(),
					},
					Required: []string{"name", "description", "difficulty", "length"},
				},
			},
		},
		Required: []string{"trails"},
	}
}

func buildPrompt(area string) string {
	return fmt.Sprintf(`Find %d popular and scenic hiking trails in or near %s.
Include a mix of difficulty levels.
Return JSON data with: name, description (short & catchy), difficulty (Easy/Moderate/Hard), length, elevation_gain, best_season.`, MaxResults, area)
}
