package wire

import "errors"

// ErrMalformedPayload indicates a message that could not be parsed.
// All parse failures wrap this sentinel so callers can branch with
// errors.Is without caring about the specific syntax problem.
var ErrMalformedPayload = errors.New("wire: malformed payload")
