package repair

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/doeshing/orca-go/internal/domain"
)

// Classification is the classifier's verdict for one failure.
type Classification struct {
	Kind    domain.ErrorKind
	Code    int
	HasCode bool
	Message string
}

type compiledPattern struct {
	kind domain.ErrorKind
	re   *regexp.Regexp
}

// Patterns are matched against the lowercased message in order; the first match wins.
var defaultPatterns = []compiledPattern{
	{kind: domain.KindTimeout, re: regexp.MustCompile(`timeout|timed out|etimedout`)},
	{kind: domain.KindExitCode, re: regexp.MustCompile(`exit(?:\s+(?:code|status))?\s*:?\s*(\d+)`)},
	{kind: domain.KindFileNotFound, re: regexp.MustCompile(`enoent|not found|no such file`)},
	{kind: domain.KindPermission, re: regexp.MustCompile(`permission|eacces|eperm`)},
	{kind: domain.KindNetwork, re: regexp.MustCompile(`network|connection|econnrefused|econnreset`)},
}

// Classifier maps execution errors to symbolic kinds.
type Classifier struct {
	patterns []compiledPattern
}

// NewClassifier returns a classifier with the built-in pattern table.
func NewClassifier() *Classifier {
	return &Classifier{patterns: defaultPatterns}
}

// Classify inspects err. A nil error classifies as unknown.
func (c *Classifier) Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: domain.KindUnknown}
	}
	return c.ClassifyMessage(err.Error())
}

// ClassifyMessage classifies a raw error message.
func (c *Classifier) ClassifyMessage(message string) Classification {
	lowered := strings.ToLower(message)
	for _, pattern := range c.patterns {
		match := pattern.re.FindStringSubmatch(lowered)
		if match == nil {
			continue
		}
		result := Classification{Kind: pattern.kind, Message: message}
		if pattern.kind == domain.KindExitCode && len(match) > 1 {
			if code, err := strconv.Atoi(match[1]); err == nil {
				result.Code = code
				result.HasCode = true
			}
		}
		return result
	}
	return Classification{Kind: domain.KindUnknown, Message: message}
}
