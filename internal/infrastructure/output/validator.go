// Package output locates and decodes the structured record embedded in command output.
package output

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

const (
	errNoRecord     = "no structured record found"
	errDecodePrefix = "decode error: "
)

// Validator implements ports.OutputParser.
type Validator struct{}

// NewValidator returns a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Parse finds the first balanced {...} block in raw and decodes it. It never
// fails; problems are reported in ParsedResult.Error.
func (v *Validator) Parse(raw string) domain.ParsedResult {
	block, ok := FirstObject(raw)
	if !ok {
		return domain.ParsedResult{Error: errNoRecord}
	}

	var record map[string]interface{}
	if err := json.Unmarshal([]byte(block), &record); err != nil {
		return domain.ParsedResult{Raw: block, Error: errDecodePrefix + err.Error()}
	}
	result := domain.ParsedResult{OK: true, Record: record, Raw: block}
	result.Status = Field(result, "status").String()
	result.Message = Field(result, "message").String()
	if result.Message == "" {
		result.Message = Field(result, "error").String()
	}
	return result
}

// Field reads a gjson path from a parsed record, e.g. "result.items.0.name".
func Field(result domain.ParsedResult, path string) gjson.Result {
	if !result.OK {
		return gjson.Result{}
	}
	return gjson.Get(result.Raw, path)
}

// FirstObject returns the first balanced top-level object in text. Braces inside
// string literals are ignored. An opening brace that never closes is skipped and
// scanning resumes after it.
func FirstObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchObject(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchObject(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

var _ ports.OutputParser = (*Validator)(nil)
