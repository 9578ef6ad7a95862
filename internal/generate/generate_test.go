package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeProvider struct {
	name     string
	response string
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func notesWithWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(words, " ")
}

func cardsJSON(t *testing.T, n int) string {
	t.Helper()
	cards := make([]Draft, n)
	for i := range cards {
		cards[i] = Draft{
			Question: fmt.Sprintf("What is the meaning of concept number %d?", i),
			Answer:   fmt.Sprintf("Concept number %d means something specific.", i),
		}
	}
	payload, err := json.Marshal(map[string]any{"flashcards": cards})
	if err != nil {
		t.Fatalf("marshal cards: %v", err)
	}
	return string(payload)
}

func validRequest() Request {
	return Request{Title: "Cells", Notes: notesWithWords(52)}
}

func TestGenerateReturnsProviderCards(t *testing.T) {
	provider := &fakeProvider{name: "groq", response: cardsJSON(t, 9)}
	pipeline := NewPipeline(0, provider)

	result, err := pipeline.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Count != 9 {
		t.Errorf("expected 9 cards, got %d", result.Count)
	}
	if len(result.Flashcards) != result.Count {
		t.Errorf("count %d does not match list length %d", result.Count, len(result.Flashcards))
	}
}

func TestGenerateCapsAndFiltersCards(t *testing.T) {
	var cards []Draft
	for i := 0; i < 20; i++ {
		cards = append(cards, Draft{
			Question: fmt.Sprintf("What does the long concept %d describe?", i),
			Answer:   fmt.Sprintf("It describes a thing in detail, number %d.", i),
		})
	}
	// These must all be dropped by validation.
	cards = append(cards,
		Draft{Question: "short", Answer: "It describes something in enough detail."},
		Draft{Question: "What is a sufficiently long question?", Answer: "tiny"},
		Draft{Question: "", Answer: "It describes something in enough detail."},
		Draft{Question: "   What is padded out with spaces?   ", Answer: "          "},
	)
	payload, _ := json.Marshal(map[string]any{"flashcards": cards})

	pipeline := NewPipeline(0, &fakeProvider{name: "groq", response: string(payload)})
	result, err := pipeline.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Count != 15 {
		t.Errorf("expected cap of 15 cards, got %d", result.Count)
	}
	for _, card := range result.Flashcards {
		if len(strings.TrimSpace(card.Question)) <= 10 {
			t.Errorf("question too short survived filtering: %q", card.Question)
		}
		if len(strings.TrimSpace(card.Answer)) <= 10 {
			t.Errorf("answer too short survived filtering: %q", card.Answer)
		}
	}
}

func TestGenerateStripsFencedCodeBlocks(t *testing.T) {
	fenced := "```json\n" + cardsJSON(t, 3) + "\n```"
	pipeline := NewPipeline(0, &fakeProvider{name: "anthropic", response: fenced})

	result, err := pipeline.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Count != 3 {
		t.Errorf("expected 3 cards, got %d", result.Count)
	}
}

func TestGenerateFallsBackToNextProvider(t *testing.T) {
	broken := &fakeProvider{name: "groq", err: errors.New("status=500")}
	malformed := &fakeProvider{name: "anthropic", response: "this is not json"}
	working := &fakeProvider{name: "openai", response: cardsJSON(t, 4)}
	pipeline := NewPipeline(0, broken, malformed, working)

	result, err := pipeline.Generate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Count != 4 {
		t.Errorf("expected 4 cards, got %d", result.Count)
	}
	if broken.calls != 1 || malformed.calls != 1 || working.calls != 1 {
		t.Errorf("expected one call per provider, got %d/%d/%d", broken.calls, malformed.calls, working.calls)
	}
}

func TestGenerateSurfacesLastProviderError(t *testing.T) {
	first := &fakeProvider{name: "groq", response: "not json at all"}
	second := &fakeProvider{name: "anthropic", response: "{ broken"}
	pipeline := NewPipeline(0, first, second)

	result, err := pipeline.Generate(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected an error when every provider fails")
	}
	if result != nil {
		t.Errorf("expected no partial result, got %+v", result)
	}
	if !strings.Contains(err.Error(), "anthropic") {
		t.Errorf("expected last provider's error, got %v", err)
	}
}

func TestGenerateEmptyAfterFilterIsFailure(t *testing.T) {
	only := &fakeProvider{name: "groq", response: `{"flashcards":[{"question":"short","answer":"x"}]}`}
	pipeline := NewPipeline(0, only)

	_, err := pipeline.Generate(context.Background(), validRequest())
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestGenerateWithoutProviders(t *testing.T) {
	pipeline := NewPipeline(0)

	_, err := pipeline.Generate(context.Background(), validRequest())
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestGenerateRejectsShortNotesBeforeAnyCall(t *testing.T) {
	provider := &fakeProvider{name: "groq", response: cardsJSON(t, 5)}
	pipeline := NewPipeline(0, provider)

	_, err := pipeline.Generate(context.Background(), Request{Title: "Cells", Notes: notesWithWords(30)})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(err.Error(), "too short") {
		t.Errorf("expected a too-short error, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("expected no provider call, got %d", provider.calls)
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{Title: "Cells", Notes: notesWithWords(50)}, false},
		{"empty title", Request{Title: "  ", Notes: notesWithWords(50)}, true},
		{"empty notes", Request{Title: "Cells", Notes: "   "}, true},
		{"49 words", Request{Title: "Cells", Notes: notesWithWords(49)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	want := `{"flashcards":[]}`
	tests := []struct {
		name  string
		input string
	}{
		{"bare object", `{"flashcards":[]}`},
		{"fenced with tag", "```json\n{\"flashcards\":[]}\n```"},
		{"fenced without tag", "```\n{\"flashcards\":[]}\n```"},
		{"unclosed fence", "```json\n{\"flashcards\":[]}"},
		{"surrounding prose", "Here you go:\n{\"flashcards\":[]}\nEnjoy!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.input); got != want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.input, got, want)
			}
		})
	}
}
