package feed

import (
	"errors"
	"fmt"
)

// ErrNoChannel is wrapped by a ParseError when the document has no channel element.
var ErrNoChannel = errors.New("feed has no channel element")

// NetworkError reports a transport failure or a non-success HTTP status.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError reports a document that is not well-formed XML or has no channel.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
