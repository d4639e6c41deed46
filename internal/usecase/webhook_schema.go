package usecase

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Webhookの外枠。イベントごとの必須項目はコード側で見る
const webhookEnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["event", "payload"],
  "properties": {
    "event": { "type": "string", "minLength": 1 },
    "payload": {
      "type": "object",
      "properties": {
        "payment": { "$ref": "#/definitions/wrapped" },
        "refund":  { "$ref": "#/definitions/wrapped" },
        "order":   { "$ref": "#/definitions/wrapped" }
      }
    }
  },
  "definitions": {
    "wrapped": {
      "type": "object",
      "required": ["entity"],
      "properties": {
        "entity": {
          "type": "object",
          "required": ["id"],
          "properties": {
            "id":     { "type": "string", "minLength": 1 },
            "amount": { "type": "integer", "minimum": 0 }
          }
        }
      }
    }
  }
}`

var webhookEnvelopeLoader = gojsonschema.NewStringLoader(webhookEnvelopeSchema)

func validateWebhookEnvelope(body []byte) error {
	result, err := gojsonschema.Validate(webhookEnvelopeLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for _, e := range result.Errors() {
			sb.WriteString(e.String())
			sb.WriteString("; ")
		}
		return fmt.Errorf("webhook does not conform to schema: %s", sb.String())
	}
	return nil
}
