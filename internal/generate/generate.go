package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	// ErrNoProviders is returned when no provider credentials are configured.
	ErrNoProviders = errors.New("no provider credentials available")
	// ErrEmptyResult indicates the provider answered but nothing survived validation.
	ErrEmptyResult = errors.New("no flashcards were produced")
)

const (
	// minNoteWords is the minimum whitespace-separated word count before
	// generation is attempted.
	minNoteWords = 50
	// minFieldLength is the trimmed length a question or answer must exceed.
	minFieldLength = 10
	// maxCards caps a result regardless of how many pairs the model returns.
	maxCards = 15

	defaultTimeout = 60 * time.Second
)

// Draft is an unpersisted question/answer pair produced by a provider.
type Draft struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request carries the title and free-text notes to generate flashcards from.
type Request struct {
	Title string
	Notes string
}

// Result is a validated, size-bounded list of drafts in provider order.
type Result struct {
	Flashcards []Draft
	Count      int
}

// Provider turns a generation request into the model's raw text payload.
// Implementations own their endpoint, auth, and response envelope; the
// pipeline owns prompt-independent normalization and validation.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Pipeline tries providers in preference order and falls back on any failure.
type Pipeline struct {
	providers []Provider
	timeout   time.Duration
}

// NewPipeline builds a pipeline over the given providers, tried in order.
// Callers pass only providers that have credentials configured.
func NewPipeline(timeout time.Duration, providers ...Provider) *Pipeline {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Pipeline{providers: providers, timeout: timeout}
}

// ValidateRequest rejects requests before any network call is made.
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("title must not be empty")
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return errors.New("notes must not be empty")
	}
	if words := len(strings.Fields(notes)); words < minNoteWords {
		return fmt.Errorf("notes too short: %d words, need at least %d", words, minNoteWords)
	}
	return nil
}

// Generate produces flashcards from the first provider that yields a usable
// result. Intermediate failures are logged; if every provider fails, the last
// provider's error is surfaced.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if len(p.providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, provider := range p.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		raw, err := provider.Generate(attemptCtx, req)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", provider.Name(), err)
			log.Printf("provider %s failed, falling back: %v", provider.Name(), err)
			continue
		}

		result, err := parseAndFilter(raw)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", provider.Name(), err)
			log.Printf("provider %s returned unusable output, falling back: %v", provider.Name(), err)
			continue
		}
		return result, nil
	}

	return nil, lastErr
}

// parseAndFilter normalizes a provider's raw text into a bounded, validated
// draft list. Malformed output or an empty post-filter list are failures.
func parseAndFilter(raw string) (*Result, error) {
	var payload struct {
		Flashcards []Draft `json:"flashcards"`
	}
	jsonStr := extractJSON(raw)
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal flashcard json: %w", err)
	}

	drafts := make([]Draft, 0, len(payload.Flashcards))
	for _, card := range payload.Flashcards {
		question := strings.TrimSpace(card.Question)
		answer := strings.TrimSpace(card.Answer)
		if len(question) <= minFieldLength || len(answer) <= minFieldLength {
			continue
		}
		drafts = append(drafts, Draft{Question: question, Answer: answer})
		if len(drafts) == maxCards {
			break
		}
	}

	if len(drafts) == 0 {
		return nil, ErrEmptyResult
	}
	return &Result{Flashcards: drafts, Count: len(drafts)}, nil
}

// extractJSON removes markdown code block formatting if present and extracts the JSON
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	// Remove markdown code blocks like ```json ... ``` or ``` ... ```
	if strings.HasPrefix(content, "```") {
		// Skip past the opening ``` and optional language identifier (e.g., "json")
		start := 3
		// Find the first newline to skip the language identifier line
		if newlineIdx := strings.Index(content[start:], "\n"); newlineIdx != -1 {
			start += newlineIdx + 1
		}

		// Find the closing ```
		if endIdx := strings.Index(content[start:], "```"); endIdx != -1 {
			content = content[start : start+endIdx]
		} else {
			// No closing ```, just take everything after the opening
			content = content[start:]
		}
	}

	content = strings.TrimSpace(content)

	// Additional safety: find the first { and last } to extract just the JSON object
	if startIdx := strings.Index(content, "{"); startIdx != -1 {
		if endIdx := strings.LastIndex(content, "}"); endIdx != -1 && endIdx > startIdx {
			content = content[startIdx : endIdx+1]
		}
	}

	return strings.TrimSpace(content)
}
