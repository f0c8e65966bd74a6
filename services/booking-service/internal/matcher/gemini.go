package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

const systemPrompt = "You are a helpful barber booking assistant. Recommend one of the listed services by name. Keep replies under 40 words."

type GeminiClassifier struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClassifier(ctx context.Context, apiKey, modelName string) (*GeminiClassifier, error) {
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	return &GeminiClassifier{client: client, model: model}, nil
}

func (g *GeminiClassifier) Close() error {
	return g.client.Close()
}

func (g *GeminiClassifier) Classify(ctx context.Context, description string, candidates []Candidate) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(Prompt(description, candidates)))
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Prompt renders the description and the service menu for the model.
func Prompt(description string, candidates []Candidate) string {
	if strings.TrimSpace(description) == "" {
		description = "N/A"
	}
	menu := make([]string, 0, len(candidates))
	for _, c := range candidates {
		menu = append(menu, fmt.Sprintf("%s (%dm $%.2f)", c.Name, c.Minutes, float64(c.PriceCents)/100))
	}
	return "Customer description: " + description + "\nServices: " + strings.Join(menu, "; ")
}
