// Package generation implements the text-generation port behind title
// candidate sampling.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLanguage marks generator rejections of the requested
// output language; callers route these to the fallback-prompt path
// instead of the generic per-attempt swallow.
var ErrUnsupportedLanguage = errors.New("generator does not support the requested language")

// IsUnsupportedLanguage classifies a generator invocation error.
func IsUnsupportedLanguage(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedLanguage) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unsupported language") ||
		strings.Contains(msg, "unsupported_language") ||
		strings.Contains(msg, "language_not_supported")
}

// classifyError folds provider errors into the port's taxonomy.
func classifyError(err error) error {
	if IsUnsupportedLanguage(err) {
		return fmt.Errorf("%w: %v", ErrUnsupportedLanguage, err)
	}
	return err
}

// Mock is a deterministic generator for offline demo and tests,
// enabled via USE_MOCK_LLM=true.
type Mock struct {
	Responses []string
	calls     int
}

func (m *Mock) Generate(_ context.Context, _, _ string, _ float64) (string, error) {
	if len(m.Responses) == 0 {
		return "빗소리와 바람", nil
	}
	r := m.Responses[m.calls%len(m.Responses)]
	m.calls++
	return r, nil
}
