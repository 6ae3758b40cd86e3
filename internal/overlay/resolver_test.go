package overlay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/clipforge/clipforge/internal/models"
)

// fakeGenerator scripts the variation capability: each call pops the next
// response from the queue.
type fakeGenerator struct {
	responses [][]string
	errs      []error
	calls     int
}

func (g *fakeGenerator) GenerateVariations(ctx context.Context, baseText string, n int, styleContext string) ([]string, error) {
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return nil, errors.New("unscripted call")
}

func assertTexts(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d texts %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("text %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveTextsOneForAll(t *testing.T) {
	got := ResolveTexts(context.Background(), &models.TextInput{
		Strategy: models.TextOneForAll,
		BaseText: "Hello",
	}, 4, nil)
	assertTexts(t, got, []string{"Hello", "Hello", "Hello", "Hello"})
}

func TestResolveTextsOneForAllFallback(t *testing.T) {
	got := ResolveTexts(context.Background(), &models.TextInput{Strategy: models.TextOneForAll}, 2, nil)
	assertTexts(t, got, []string{FallbackText, FallbackText})
}

func TestResolveTextsNilInput(t *testing.T) {
	got := ResolveTexts(context.Background(), nil, 3, nil)
	assertTexts(t, got, []string{FallbackText, FallbackText, FallbackText})
}

func TestResolveTextsUniqueForAll(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		n     int
		want  []string
	}{
		{
			name:  "padding with last element",
			texts: []string{"a", "b"},
			n:     5,
			want:  []string{"a", "b", "b", "b", "b"},
		},
		{
			name:  "truncation",
			texts: []string{"a", "b", "c", "d"},
			n:     2,
			want:  []string{"a", "b"},
		},
		{
			name:  "exact count",
			texts: []string{"x", "y", "z"},
			n:     3,
			want:  []string{"x", "y", "z"},
		},
		{
			name:  "empty list falls back",
			texts: nil,
			n:     3,
			want:  []string{FallbackText, FallbackText, FallbackText},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTexts(context.Background(), &models.TextInput{
				Strategy:    models.TextUniqueForAll,
				UniqueTexts: tt.texts,
			}, tt.n, nil)
			assertTexts(t, got, tt.want)
		})
	}
}

func TestResolveTextsBaseVarySuccess(t *testing.T) {
	gen := &fakeGenerator{responses: [][]string{{"Buy now", "Act fast", "Don't wait"}}}

	got := ResolveTexts(context.Background(), &models.TextInput{
		Strategy: models.TextBaseVary,
		BaseText: "Buy now",
		Context:  "sales",
	}, 3, gen)

	assertTexts(t, got, []string{"Buy now", "Act fast", "Don't wait"})
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestResolveTextsBaseVaryRetriesThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{errors.New("timeout"), nil},
		responses: [][]string{nil, {"Go", "Go go", "Go go go"}},
	}

	got := ResolveTexts(context.Background(), &models.TextInput{
		Strategy: models.TextBaseVary,
		BaseText: "Go",
	}, 3, gen)

	assertTexts(t, got, []string{"Go", "Go go", "Go go go"})
	if gen.calls != 2 {
		t.Errorf("generator called %d times, want 2", gen.calls)
	}
}

func TestResolveTextsBaseVaryExhaustedFallsBack(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")},
	}

	got := ResolveTexts(context.Background(), &models.TextInput{
		Strategy: models.TextBaseVary,
		BaseText: "Buy now",
	}, 4, gen)

	assertTexts(t, got, []string{"Buy now", "Buy now", "Buy now", "Buy now"})
	if gen.calls != generatorAttempts {
		t.Errorf("generator called %d times, want %d", gen.calls, generatorAttempts)
	}
}

func TestResolveTextsBaseVaryContractViolations(t *testing.T) {
	tests := []struct {
		name     string
		response []string
	}{
		{"wrong count", []string{"Buy now", "extra"}},
		{"wrong first element", []string{"Something else", "a", "b"}},
		{"empty element", []string{"Buy now", "", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{responses: [][]string{tt.response, tt.response, tt.response}}

			got := ResolveTexts(context.Background(), &models.TextInput{
				Strategy: models.TextBaseVary,
				BaseText: "Buy now",
			}, 3, gen)

			// A contract-violating capability degrades to one-for-all.
			assertTexts(t, got, []string{"Buy now", "Buy now", "Buy now"})
		})
	}
}

func TestResolveTextsBaseVaryMissingBase(t *testing.T) {
	gen := &fakeGenerator{}
	got := ResolveTexts(context.Background(), &models.TextInput{Strategy: models.TextBaseVary}, 2, gen)
	assertTexts(t, got, []string{FallbackText, FallbackText})
	if gen.calls != 0 {
		t.Errorf("generator called %d times without a base text", gen.calls)
	}
}

func TestResolveTextsAlwaysNonEmpty(t *testing.T) {
	inputs := []*models.TextInput{
		nil,
		{Strategy: models.TextOneForAll},
		{Strategy: models.TextUniqueForAll},
		{Strategy: models.TextBaseVary},
		{Strategy: "mystery"},
	}

	for i, input := range inputs {
		for n := 1; n <= 6; n++ {
			got := ResolveTexts(context.Background(), input, n, nil)
			if len(got) != n {
				t.Fatalf("input %d: got %d texts, want %d", i, len(got), n)
			}
			for j, s := range got {
				if s == "" {
					t.Errorf("input %d: text %d is empty", i, j)
				}
			}
		}
	}
}

func ExampleResolveTexts() {
	texts := ResolveTexts(context.Background(), &models.TextInput{
		Strategy:    models.TextUniqueForAll,
		UniqueTexts: []string{"intro", "outro"},
	}, 3, nil)
	fmt.Println(texts)
	// Output: [intro outro outro]
}
