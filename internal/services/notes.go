package services

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// NotesService extracts plain text from uploaded PDF documents so notes don't
// have to be pasted by hand.
type NotesService struct{}

func NewNotesService() *NotesService {
	return &NotesService{}
}

// ExtractText returns the PDF's text content with whitespace collapsed to
// single spaces.
func (s *NotesService) ExtractText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	raw, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.Join(strings.Fields(string(raw)), " ")
	if text == "" {
		return "", errors.New("pdf contains no extractable text")
	}
	return text, nil
}
