package nlu

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema constrains what the provider is allowed to hand us before
// any of it is trusted.  Unknown intents, out-of-range confidences, and
// non-string entity values are all rejected up front so the slot extractor
// only ever sees well-formed input.
const extractionSchema = `{
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent": {
      "type": "string",
      "enum": ["browse", "valuation", "contact", "about", "unknown"]
    },
    "entities": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "confidence": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("extraction.json", extractionSchema)

// ParseExtraction interprets raw provider text as an Extraction.  The text
// is expected to contain a single JSON object, optionally wrapped in a
// markdown code fence.  Malformed or empty text returns ErrMalformedOutput;
// values are canonicalized through the alias tables so provider output and
// fallback output converge on identical representations.
func ParseExtraction(raw string) (Extraction, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return Extraction{}, fmt.Errorf("%w: no JSON object in provider text", ErrMalformedOutput)
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Extraction{}, fmt.Errorf("%w: schema: %v", ErrMalformedOutput, err)
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(payload), &ext); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	// Canonicalize every entity; drop values the alias tables cannot
	// resolve so raw spellings never reach a session slot.
	canonical := make(map[string]string, len(ext.Entities))
	for key, value := range ext.Entities {
		if v, ok := Canonicalize(key, value); ok {
			canonical[key] = v
		}
	}
	ext.Entities = canonical

	return ext, nil
}

// extractJSONObject returns the first top-level {...} object in raw,
// tolerating markdown code fences and prose around it.
func extractJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
