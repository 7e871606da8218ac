package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the "v" field of every JSON response body.
const EnvelopeVersion = 1

// Envelope wraps successful response bodies.
type Envelope struct {
	V       int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorEnvelope wraps error response bodies.
type ErrorEnvelope struct {
	V       int       `json:"v"`
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// EnvelopeTransformer wraps every response body huma serializes. Errors
// produced through RegisterErrorHandler keep their code, message, and
// details under "error". Raw byte bodies such as the calendar feed are
// written by huma without passing through here.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return &ErrorEnvelope{V: EnvelopeVersion, Success: false, Error: body}, nil
	case *Envelope, *ErrorEnvelope:
		return v, nil
	default:
		return &Envelope{V: EnvelopeVersion, Success: true, Data: v}, nil
	}
}
