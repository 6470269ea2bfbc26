package audio

import (
	tuneserrors "github.com/tessro/tunes/internal/errors"
)

// ErrorCode classifies a media failure.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeAborted
	CodeNetwork
	CodeDecode
	CodeUnsupported
)

// String returns the code name.
func (c ErrorCode) String() string {
	switch c {
	case CodeAborted:
		return "aborted"
	case CodeNetwork:
		return "network"
	case CodeDecode:
		return "decode"
	case CodeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// MediaError is returned for any failure to load or play a source.
type MediaError struct {
	Code ErrorCode
	URL  string
	Err  error
}

func (e *MediaError) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return e.Message() + ": " + e.Err.Error()
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// Is lets callers match media errors against the shared media sentinel.
func (e *MediaError) Is(target error) bool {
	return target == tuneserrors.ErrMediaLoad
}

// Message returns the user-facing text for the error class.
func (e *MediaError) Message() string {
	switch e.Code {
	case CodeAborted:
		return "Audio playback was aborted"
	case CodeNetwork:
		return "Network error occurred while loading audio"
	case CodeDecode:
		return "Audio file is corrupted or unsupported format"
	case CodeUnsupported:
		return "Audio format not supported"
	default:
		return "Audio playback error occurred"
	}
}

// MessageFor returns the user-facing text for any error. Non-media errors
// get the generic message.
func MessageFor(err error) string {
	var me *MediaError
	if tuneserrors.As(err, &me) {
		return me.Message()
	}
	return (&MediaError{}).Message()
}
