package document

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema wraps every schema violation.
var ErrSchema = errors.New("config document does not match schema")

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// DottedVersionChecker accepts MAJOR.MINOR.PATCH strings.
type DottedVersionChecker struct{}

// IsFormat implements gojsonschema.FormatChecker.
func (DottedVersionChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	return versionPattern.MatchString(s)
}

// documentSchema only checks shapes. Remote and cached documents written by
// older tools must still load, so nothing is required and nulls are allowed.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-04/schema#",
  "type": "object",
  "properties": {
    "version": {"type": ["string", "null"]},
    "last_updated": {"type": ["string", "null"]},
    "dashboards": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "string"}
    },
    "authorized_users": {"type": ["array", "null"], "items": {"type": "string"}},
    "admin_users": {"type": ["array", "null"], "items": {"type": "string"}},
    "require_corporate_network": {"type": ["boolean", "null"]},
    "encrypted": {"type": ["boolean", "null"]},
    "encryption_version": {"type": ["string", "null"]},
    "changelog": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "version": {"type": "string"},
          "date": {"type": "string"},
          "author": {"type": "string"},
          "changes": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// draftSchema is applied to hand-edited drafts before publishing.
const draftSchema = `{
  "$schema": "http://json-schema.org/draft-04/schema#",
  "type": "object",
  "required": ["version", "dashboards", "authorized_users", "admin_users"],
  "properties": {
    "version": {"type": "string", "format": "dotted-version"},
    "dashboards": {
      "type": "object",
      "additionalProperties": {"type": "string", "minLength": 1}
    },
    "authorized_users": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "admin_users": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "require_corporate_network": {"type": "boolean"},
    "changelog": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["version", "changes"],
        "properties": {
          "version": {"type": "string", "format": "dotted-version"},
          "changes": {"type": "array", "minItems": 1, "items": {"type": "string"}}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	docSchema  *gojsonschema.Schema
	drftSchema *gojsonschema.Schema
	schemaErr  error
)

func loadSchemas() {
	gojsonschema.FormatCheckers.Add("dotted-version", DottedVersionChecker{})
	docSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if schemaErr != nil {
		return
	}
	drftSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(draftSchema))
}

// ValidateSchema checks the shape of a raw document.
func ValidateSchema(data []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return fmt.Errorf("failed to compile document schema: %w", schemaErr)
	}
	return validateWith(docSchema, data)
}

func validateDraftSchema(data []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return fmt.Errorf("failed to compile draft schema: %w", schemaErr)
	}
	return validateWith(drftSchema, data)
}

func validateWith(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// Not JSON at all.
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}
