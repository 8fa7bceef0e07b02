package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Stage   Stage
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s %s:", prefix, e.Stage.Step())
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError with the same code, so sentinel values can be
// compared with errors.Is regardless of message or cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Stage == ""
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeFileNotFound       = "FILE_NOT_FOUND"
	ErrCodeRead               = "READ_ERROR"
	ErrCodeEmptyInput         = "EMPTY_INPUT"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeEmbeddingProvider  = "EMBEDDING_PROVIDER_ERROR"
	ErrCodeGenerationProvider = "GENERATION_PROVIDER_ERROR"
	ErrCodeAuthentication     = "AUTHENTICATION_ERROR"
)

// Sentinels for errors.Is. They carry only a code.
var (
	ErrFileNotFound       = &DomainError{Code: ErrCodeFileNotFound}
	ErrRead               = &DomainError{Code: ErrCodeRead}
	ErrEmptyInput         = &DomainError{Code: ErrCodeEmptyInput}
	ErrInvalidInput       = &DomainError{Code: ErrCodeInvalidInput}
	ErrConfiguration      = &DomainError{Code: ErrCodeConfiguration}
	ErrEmbeddingProvider  = &DomainError{Code: ErrCodeEmbeddingProvider}
	ErrGenerationProvider = &DomainError{Code: ErrCodeGenerationProvider}
	ErrAuthentication     = &DomainError{Code: ErrCodeAuthentication}
)

// Code returns the DomainError code found in err's chain, or "".
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsInputError reports whether err is one of the input error kinds.
func IsInputError(err error) bool {
	switch Code(err) {
	case ErrCodeFileNotFound, ErrCodeRead, ErrCodeEmptyInput, ErrCodeInvalidInput:
		return true
	}
	return false
}

// WithStage tags err with the pipeline stage that was current when it failed.
// The message names the step being attempted. DomainErrors keep their code.
func WithStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		if de.Stage != "" {
			return err
		}
		tagged := *de
		tagged.Stage = stage
		return &tagged
	}
	return fmt.Errorf("%s: %w", stage.Step(), err)
}

func InputError(code, message string, err error) *DomainError {
	return NewDomainErrorWithCause(code, message, err)
}

func ConfigurationError(message string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, message)
}

func EmbeddingProviderError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingProvider, message, err)
}

func GenerationProviderError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGenerationProvider, message, err)
}

func AuthenticationError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeAuthentication, message, err)
}
