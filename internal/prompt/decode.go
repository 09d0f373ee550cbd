package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/convsynth/internal/model"
)

var (
	fenceRe      = regexp.MustCompile("```[A-Za-z]*\\n?")
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// DecodeError reports a response that does not match its schema.
type DecodeError struct {
	Missing []string
	Err     error
}

func (e *DecodeError) Error() string {
	if len(e.Missing) > 0 {
		return "missing fields: " + strings.Join(e.Missing, ", ")
	}
	return "malformed response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StripFences removes markdown code fences around a YAML block.
func StripFences(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

// Decode parses a YAML response into out, a pointer to a yaml-tagged struct.
// Every expected field must be present and non-empty. Responses that are
// not valid YAML fall back to line-based field extraction.
func Decode(text string, expected []string, out any) error {
	clean := StripFences(text)
	if clean == "" {
		return &DecodeError{Err: errors.New("empty response")}
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(clean), &raw); err == nil && raw != nil {
		if len(missingKeys(raw, expected)) == 0 {
			if err := yaml.Unmarshal([]byte(clean), out); err == nil {
				return nil
			}
		}
	}

	fields := ExtractFields(clean, expected)
	var missing []string
	for _, k := range expected {
		if fields[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &DecodeError{Missing: missing}
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range expected {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: fields[k]},
		)
	}
	if err := node.Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func missingKeys(raw map[string]any, expected []string) []string {
	var missing []string
	for _, k := range expected {
		v, ok := raw[k]
		if !ok || v == nil {
			missing = append(missing, k)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// ExtractFields pulls "key: value" sections out of loosely formatted text.
// A value runs until the next expected key; its lines are joined with spaces.
func ExtractFields(text string, keys []string) map[string]string {
	type position struct {
		start int
		key   string
	}

	var positions []position
	for _, key := range keys {
		q := regexp.QuoteMeta(key)
		for _, pattern := range []string{`(?m)^` + q + `\s*:`, `\b` + q + `\s*:`} {
			if loc := regexp.MustCompile(pattern).FindStringIndex(text); loc != nil {
				positions = append(positions, position{start: loc[0], key: key})
				break
			}
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].start < positions[j].start })

	result := make(map[string]string, len(positions))
	for i, p := range positions {
		end := len(text)
		if i+1 < len(positions) {
			end = positions[i+1].start
		}
		section := text[p.start:end]
		m := regexp.MustCompile(`(?s)^` + regexp.QuoteMeta(p.key) + `\s*:\s*(.*)`).FindStringSubmatch(section)
		if m == nil {
			continue
		}
		if v := cleanValue(m[1]); v != "" {
			result[p.key] = v
		}
	}
	return result
}

func cleanValue(v string) string {
	var lines []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	v = whitespaceRe.ReplaceAllString(strings.Join(lines, " "), " ")
	v = strings.TrimSpace(v)
	if len(v) >= 2 && strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") && !strings.Contains(v, ",") {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	v = strings.Trim(v, `"'`)
	return strings.TrimSpace(v)
}

// ContractError converts a decode failure into a contract violation.
func ContractError(err error, purpose string, turn int) *model.ContractError {
	var de *DecodeError
	if errors.As(err, &de) && len(de.Missing) > 0 {
		return &model.ContractError{
			Kind:    model.ContractMissingField,
			Purpose: purpose,
			Turn:    turn,
			Detail:  de.Error(),
		}
	}
	return &model.ContractError{
		Kind:    model.ContractMalformed,
		Purpose: purpose,
		Turn:    turn,
		Detail:  fmt.Sprint(err),
	}
}
