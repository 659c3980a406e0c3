package recording

import (
	"reflect"

	"github.com/go-openapi/strfmt"
	"github.com/invopop/jsonschema"
)

// Schema describes the JSON document of a single recorded entry.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Mapper:         mapType,
	}
	s := r.Reflect(&Entry{})
	s.Title = "tether recording entry"
	s.Description = "A message captured by tether record. A recording file is a JSON array of entries."
	return s
}

func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeOf(strfmt.DateTime{}):
		return &jsonschema.Schema{Type: "string", Format: "date-time"}
	case reflect.TypeOf(Bytes(nil)):
		return &jsonschema.Schema{
			Type:        "array",
			Description: "raw payload bytes",
			Items:       &jsonschema.Schema{Type: "integer", Minimum: "0", Maximum: "255"},
		}
	}
	return nil
}
