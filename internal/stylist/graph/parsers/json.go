package parsers

import (
	"fmt"
	"math"
	"strings"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 64 * 1024 // 64KB of raw model text
	maxObjectLen  = 16 * 1024 // 16KB for the extracted JSON object
	maxFieldLen   = 2 * 1024  // 2KB per string field
	maxErrSnippet = 200       // limit error snippet size
)

// ExtractJSONObject returns the first balanced JSON object embedded in
// content. Model replies routinely wrap the object in prose or markdown
// fences; everything around the object is ignored. Braces inside string
// values do not confuse the scan.
func ExtractJSONObject(content string) (string, error) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", fmt.Errorf("no json object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
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
				obj := content[start : i+1]
				if len(obj) > maxObjectLen {
					return "", fmt.Errorf("json object too large")
				}
				return obj, nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced json object")
}

// --- helpers ---

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncField(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxFieldLen {
		return s[:maxFieldLen]
	}
	return s
}
