package parse

import "errors"

// ErrNoContent is returned when the document has no content to parse.
var ErrNoContent = errors.New("parse: no content root found")
