// Package codec turns a fetched payload into a caller's type. The payload is
// cached and shared as raw bytes; each caller decodes with its own Codec.
package codec

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
)

// Codec decodes payloads of one content type.
type Codec interface {
	// Decode unmarshals data into v.
	Decode(data []byte, v any) error

	// ContentType is sent as the Accept header of requests using this codec.
	ContentType() string
}

// JSON decodes application/json payloads.
type JSON struct{}

// Decode implements Codec.
func (JSON) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// ContentType implements Codec.
func (JSON) ContentType() string { return "application/json" }

// XML decodes application/xml payloads.
type XML struct{}

// Decode implements Codec.
func (XML) Decode(data []byte, v any) error { return xml.Unmarshal(data, v) }

// ContentType implements Codec.
func (XML) ContentType() string { return "application/xml" }

// Raw hands the payload through. v must be a *[]byte or *string.
type Raw struct{}

// Decode implements Codec.
func (Raw) Decode(data []byte, v any) error {
	switch out := v.(type) {
	case *[]byte:
		*out = append((*out)[:0], data...)
	case *string:
		*out = string(data)
	default:
		return fmt.Errorf("raw codec cannot decode into %T", v)
	}
	return nil
}

// ContentType implements Codec.
func (Raw) ContentType() string { return "*/*" }
