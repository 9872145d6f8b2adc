package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingInput
	KindInvalidURL
	KindContentUnavailable
	KindModelUnavailable
	KindGenerationError
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingInput:
		return "MissingInput"
	case KindInvalidURL:
		return "InvalidURL"
	case KindContentUnavailable:
		return "ContentUnavailable"
	case KindModelUnavailable:
		return "ModelUnavailable"
	case KindGenerationError:
		return "GenerationError"
	default:
		return "Unknown"
	}
}

// Stage names the pipeline step that failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageFetch     Stage = "fetch"
	StageSummarize Stage = "summarize"
)

var (
	ErrMissingInput       = errors.New("missing input")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrContentUnavailable = errors.New("content unavailable")
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrGenerationError    = errors.New("generation error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindMissingInput:
		return ErrMissingInput
	case KindInvalidURL:
		return ErrInvalidURL
	case KindContentUnavailable:
		return ErrContentUnavailable
	case KindModelUnavailable:
		return ErrModelUnavailable
	case KindGenerationError:
		return ErrGenerationError
	default:
		return nil
	}
}

// Error is the typed failure every stage returns.
type Error struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func NewError(kind ErrorKind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func Errorf(kind ErrorKind, stage Stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel := e.Kind.sentinel()
	return sentinel != nil && target == sentinel
}

// KindOf returns the kind of the first domain.Error in err's chain.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}

	return KindUnknown
}
