package overlay

import (
	"context"
	"fmt"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/rs/zerolog/log"
)

// FallbackText is the overlay used when no usable text input is available.
const FallbackText = "AI Generated Video"

// generatorAttempts is how many times the variation capability is tried
// before falling back to replicating the base text.
const generatorAttempts = 3

// VariationGenerator produces n variations of a base text. The contract:
// exactly n strings, element 0 equal to baseText, all elements non-empty.
// styleContext is passed through verbatim; the capability tailors tone itself.
type VariationGenerator interface {
	GenerateVariations(ctx context.Context, baseText string, n int, styleContext string) ([]string, error)
}

// ResolveTexts maps a text strategy and its inputs to exactly n overlay
// strings, in order. It never fails: any generator error degrades to
// one-for-all semantics over the base text.
func ResolveTexts(ctx context.Context, input *models.TextInput, n int, gen VariationGenerator) []string {
	strategy := models.TextOneForAll
	if input != nil && input.Strategy != "" {
		strategy = input.Strategy
	}

	switch strategy {
	case models.TextOneForAll:
		base := FallbackText
		if input != nil && input.BaseText != "" {
			base = input.BaseText
		}
		return replicate(base, n)

	case models.TextUniqueForAll:
		if input == nil || len(input.UniqueTexts) == 0 {
			return replicate(FallbackText, n)
		}
		texts := input.UniqueTexts
		if len(texts) >= n {
			return append([]string(nil), texts[:n]...)
		}
		out := append([]string(nil), texts...)
		last := texts[len(texts)-1]
		for len(out) < n {
			out = append(out, last)
		}
		return out

	case models.TextBaseVary:
		if input == nil || input.BaseText == "" {
			log.Warn().Msg("No base text for base_vary strategy, using fallback")
			return replicate(FallbackText, n)
		}
		return resolveVariations(ctx, input, n, gen)

	default:
		log.Warn().Str("strategy", string(strategy)).Msg("Unknown text strategy, using fallback")
		return replicate(FallbackText, n)
	}
}

func resolveVariations(ctx context.Context, input *models.TextInput, n int, gen VariationGenerator) []string {
	if gen == nil {
		log.Warn().Msg("Variation generator not configured, replicating base text")
		return replicate(input.BaseText, n)
	}

	for attempt := 1; attempt <= generatorAttempts; attempt++ {
		variations, err := gen.GenerateVariations(ctx, input.BaseText, n, input.Context)
		if err == nil {
			err = validateVariations(variations, input.BaseText, n)
		}
		if err == nil {
			return variations
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("n", n).
			Msg("Variation generation failed")
	}

	log.Warn().Str("base_text", input.BaseText).Msg("Variation generation exhausted, replicating base text")
	return replicate(input.BaseText, n)
}

func validateVariations(variations []string, baseText string, n int) error {
	if len(variations) != n {
		return fmt.Errorf("expected %d variations, got %d", n, len(variations))
	}
	if variations[0] != baseText {
		return fmt.Errorf("first variation does not equal base text")
	}
	for i, v := range variations {
		if v == "" {
			return fmt.Errorf("variation %d is empty", i)
		}
	}
	return nil
}

func replicate(text string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = text
	}
	return out
}
