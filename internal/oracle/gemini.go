package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/interfaces"
	"github.com/user/silent-god/internal/types"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const turnInstruction = "Execute the Divine Will. Populate the world. Prevent the void."

// Gemini is the Simulation Oracle backed by the Gemini API
type Gemini struct {
	client     *genai.Client
	model      string
	imageModel string
	logger     *zap.Logger
}

var (
	_ interfaces.Oracle            = (*Gemini)(nil)
	_ interfaces.PortraitGenerator = (*Gemini)(nil)
)

// NewGemini creates the oracle. Without an API key no client is created and
// every turn returns the missing-key response.
func NewGemini(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (*Gemini, error) {
	g := &Gemini{
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}
	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, the oracle will stay silent")
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Close releases the client
func (g *Gemini) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// Advance runs one turn through the model
func (g *Gemini) Advance(ctx context.Context, req types.SimulationRequest) (*types.SimulationResult, error) {
	if g.client == nil {
		return MissingKeyResult(req), nil
	}

	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(prompt))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(turnInstruction))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	result, err := ParseResult(text, req)
	if err != nil {
		g.logger.Debug("Unparseable oracle output", zap.String("output", text))
		return nil, err
	}

	g.logger.Debug("Oracle answered",
		zap.Int("logs", len(result.Logs)),
		zap.Int("figures", len(result.UpdatedFigures)),
		zap.Bool("petition", result.PendingDecision != nil))
	return result, nil
}

// Generate renders a portrait as a data URL. An empty URL means the model
// returned no image.
func (g *Gemini) Generate(ctx context.Context, person types.Person) (string, error) {
	if g.client == nil {
		return "", nil
	}

	model := g.client.GenerativeModel(g.imageModel)
	resp, err := model.GenerateContent(ctx, genai.Text(PortraitPrompt(person)))
	if err != nil {
		return "", fmt.Errorf("failed to generate portrait: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				return DataURL(blob.MIMEType, blob.Data), nil
			}
		}
	}
	return "", nil
}

// DataURL encodes image bytes as a data URL
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content returned from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("unexpected response type from Gemini")
	}
	return b.String(), nil
}
