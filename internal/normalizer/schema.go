package normalizer

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const itemSchemaJSON = `{
  "type": "object",
  "required": ["file", "canonical_title", "content_type", "noise_removed", "confidence", "notes"],
  "properties": {
    "file": {"type": "string"},
    "canonical_title": {"type": "string"},
    "content_type": {"enum": ["main_novel", "side_story", "fanfic", "parody", "unknown"]},
    "noise_removed": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "notes": {"type": "string"}
  }
}`

var itemSchema = jsonschema.MustCompileString("normalizer_item.json", itemSchemaJSON)

func validItem(doc any) error {
	return itemSchema.Validate(doc)
}
