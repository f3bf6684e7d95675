package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/studyctl/internal/study"
)

// logEventSchema bounds what a client may write into the session log. Known
// log types get field-level rules; unknown types must still be a short
// snake_case name with a small flat object payload.
const logEventSchema = `{
  "type": "object",
  "required": ["log_type", "event_data"],
  "properties": {
    "log_type": {"type": "string", "pattern": "^[a-z][a-z0-9_]{0,63}$"},
    "event_data": {"type": "object", "maxProperties": 32}
  },
  "allOf": [
    {
      "if": {"properties": {"log_type": {"const": "scroll"}}},
      "then": {"properties": {"event_data": {
        "required": ["unit", "depth"],
        "properties": {
          "unit": {"type": "integer", "minimum": 1},
          "depth": {"type": "integer", "minimum": 0, "maximum": 100}
        }
      }}}
    },
    {
      "if": {"properties": {"log_type": {"const": "page_view"}}},
      "then": {"properties": {"event_data": {
        "required": ["unit"],
        "properties": {
          "unit": {"type": "integer", "minimum": 1},
          "from_unit": {"type": "integer", "minimum": 0}
        }
      }}}
    },
    {
      "if": {"properties": {"log_type": {"const": "timer_warning"}}},
      "then": {"properties": {"event_data": {
        "required": ["signal"],
        "properties": {"signal": {"enum": ["five_minutes_remaining", "one_minute_remaining", "time_up"]}}
      }}}
    },
    {
      "if": {"properties": {"log_type": {"const": "interaction_completed"}}},
      "then": {"properties": {"event_data": {
        "required": ["trigger"],
        "properties": {"trigger": {"enum": ["finish_early", "time_up_acknowledged"]}}
      }}}
    }
  ]
}`

const logEventSchemaURL = "schema://log-event.json"

// eventValidator checks log events against the compiled schema.
type eventValidator struct {
	schema *jsonschema.Schema
}

func newEventValidator() (*eventValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(logEventSchema))
	if err != nil {
		return nil, fmt.Errorf("parse log event schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(logEventSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(logEventSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile log event schema: %w", err)
	}
	return &eventValidator{schema: compiled}, nil
}

// Validate returns an error wrapping study.ErrInvalidRequest when ev does
// not conform.
func (v *eventValidator) Validate(ev study.LogEvent) error {
	if ev.EventData == nil {
		ev.EventData = map[string]any{}
	}
	// The validator only understands decoded JSON values, not Go ints.
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode log event: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode log event: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("log event %q: %v: %w", ev.LogType, err, study.ErrInvalidRequest)
	}
	return nil
}
