package rag

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Model responses are supposed to be bare JSON objects but frequently
// arrive wrapped in markdown code fences, or slightly malformed. The
// extractors below try a structured parse first and fall back to
// regex extraction of individual keys so a single bad field does not
// discard the whole response.

// stripCodeFences removes a surrounding markdown code fence, if any.
func stripCodeFences(s string) string {
	out := strings.TrimSpace(s)
	if strings.HasPrefix(out, "```json") {
		out = out[len("```json"):]
	} else if strings.HasPrefix(out, "```") {
		out = out[len("```"):]
	}
	if strings.HasSuffix(out, "```") {
		out = out[:len(out)-len("```")]
	}
	return strings.TrimSpace(out)
}

// parseJSONObject unmarshals a response into a generic map after
// stripping code fences.
func parseJSONObject(s string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(stripCodeFences(s)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// extractJSONString pulls a string field out of a possibly-malformed
// JSON response. Escaped quotes and backslashes are unescaped.
func extractJSONString(response, key string) string {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	m := re.FindStringSubmatch(response)
	if m == nil {
		return ""
	}
	val := strings.ReplaceAll(m[1], `\"`, `"`)
	val = strings.ReplaceAll(val, `\\`, `\`)
	return val
}

// extractJSONBool pulls a boolean field out of a possibly-malformed
// JSON response, returning def when the key is absent.
func extractJSONBool(response, key string, def bool) bool {
	re := regexp.MustCompile(`(?i)"` + regexp.QuoteMeta(key) + `"\s*:\s*(true|false)`)
	m := re.FindStringSubmatch(response)
	if m == nil {
		return def
	}
	return strings.EqualFold(m[1], "true")
}

// extractJSONIntArray pulls an integer array field out of a
// possibly-malformed JSON response. Non-numeric elements are skipped.
func extractJSONIntArray(response, key string) []int {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*\[([^\]]*)\]`)
	m := re.FindStringSubmatch(response)
	if m == nil {
		return nil
	}
	var out []int
	for _, tok := range strings.Split(m[1], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// asString converts a generic JSON value to a string, or "".
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asBool converts a generic JSON value to a bool, or def.
func asBool(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// asIntSlice converts a generic JSON array to ints, skipping anything
// that is not a number.
func asIntSlice(v any) []int {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []int
	for _, e := range arr {
		if f, ok := e.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
