package document

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ParseDraft decodes a hand-edited document. Comments and trailing commas
// are accepted. Drafts are held to the stricter draft schema: version,
// dashboards, and both user lists must be present, and at least one admin.
func ParseDraft(data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)
	if err := validateDraftSchema(stripped); err != nil {
		return nil, err
	}
	doc := New()
	if err := json.Unmarshal(stripped, doc); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return Validate(doc), nil
}

// LoadDraft reads and parses a draft file.
func LoadDraft(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft %s: %w", path, err)
	}
	return ParseDraft(data)
}
