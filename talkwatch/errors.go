package talkwatch

import "errors"

// ErrUnknownPage is returned when an operation names a page that is
// neither configured nor previously observed.
var ErrUnknownPage = errors.New("talkwatch: unknown page")
