package applieswhen

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// nodeSchema is the structural contract of a condition tree. Semantic
// per-operator constraints live in Validate; the schema gate catches
// shape errors (wrong types, missing op, foreign keys) before decoding.
const nodeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://lexhr.dev/schemas/applies-when.json",
  "$ref": "#/$defs/node",
  "$defs": {
    "node": {
      "type": "object",
      "required": ["op"],
      "additionalProperties": false,
      "properties": {
        "op": {
          "type": "string",
          "enum": ["and", "or", "not", "eq", "ne", "gt", "gte", "lt", "lte", "in", "date_range"]
        },
        "children": {
          "type": "array",
          "items": { "$ref": "#/$defs/node" }
        },
        "field": { "type": "string" },
        "value": {},
        "from": { "type": "string" },
        "until": { "type": "string" }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("applies-when.json", strings.NewReader(nodeSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile("applies-when.json")
	})
	return compiledSchema, schemaErr
}

func validateSchema(raw []byte) error {
	sch, err := compiled()
	if err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return err
	}
	return nil
}
