package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// maxResponseLogBytes is the max length of a model response body to log in full.
const maxResponseLogBytes = 4096

// Client wraps the Gemini API for text variation generation.
type Client struct {
	model string
	llm   llms.Model
}

// NewClient creates a new LLM client for the given API key and model.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}

	client := &Client{model: model}

	llm, err := googleai.New(context.Background(),
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		// Leave the model unset; variation requests will fall back to
		// one-for-all semantics in the resolver.
		log.Error().Err(err).Str("model", model).Msg("Failed to initialize Gemini model")
		return client
	}

	client.llm = llm
	return client
}

// GenerateVariations produces n overlay variations of baseText. The returned
// slice has exactly n elements and element 0 is baseText itself. styleContext,
// when non-empty, is handed to the model verbatim to steer tone.
func (c *Client) GenerateVariations(ctx context.Context, baseText string, n int, styleContext string) ([]string, error) {
	if c.llm == nil {
		return nil, fmt.Errorf("gemini model not initialized")
	}
	if n < 1 {
		return nil, fmt.Errorf("variation count must be positive, got %d", n)
	}
	if n == 1 {
		return []string{baseText}, nil
	}

	log.Debug().
		Str("base_text", baseText).
		Int("n", n).
		Str("context", styleContext).
		Msg("Generating text variations")

	systemPrompt := fmt.Sprintf(`You are a social media content expert. Given the base text from the user, generate %d creative variations that maintain the same core message but use different phrasings, calls-to-action, or emotional tones.

Requirements:
- Keep variations concise, at most 15 words each (they are burned into video overlays)
- Maintain the original intent and context
- Vary the phrasing and calls-to-action
- Consider different emotional tones (excited, urgent, friendly, professional)

Return exactly %d variations, one per line, without numbering or bullet points.`, n-1, n-1)

	if styleContext != "" {
		systemPrompt += fmt.Sprintf("\n\nStyle context for the variations: %s", styleContext)
	}

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: systemPrompt}}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: baseText}}},
	}

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(0.8),
		llms.WithMaxTokens(1024),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("gemini returned no choices")
	}

	raw := resp.Choices[0].Content
	logResponse(raw)

	variations := parseVariationLines(raw)

	// The model owes n-1 lines; the base text is always element 0. Short
	// responses are padded with the base text, long ones trimmed.
	if len(variations) > n-1 {
		variations = variations[:n-1]
	}
	for len(variations) < n-1 {
		variations = append(variations, baseText)
	}

	result := append([]string{baseText}, variations...)

	log.Info().
		Int("n", len(result)).
		Str("model", c.model).
		Msg("Text variations generated")

	return result, nil
}

// parseVariationLines splits a model response into candidate variations,
// dropping empty lines and stray list markers.
func parseVariationLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.Trim(line, `"`)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func logResponse(raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("gemini_response", raw).Msg("Gemini response")
		return
	}
	log.Debug().
		Str("gemini_response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("gemini_response_len", len(raw)).
		Msg("Gemini response")
}
