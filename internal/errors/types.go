// Package errors defines the structured error type reported by every stage
// of a bbcoder build, from manifest loading through discovery and rendering.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind represents the category of a build failure.
type ErrorKind string

const (
	KindManifest        ErrorKind = "manifest"
	KindTargetNotFound  ErrorKind = "target_not_found"
	KindFileNotFound    ErrorKind = "file_not_found"
	KindXMLParse        ErrorKind = "xml_parse"
	KindStructural      ErrorKind = "structural"
	KindCircularInclude ErrorKind = "circular_include"
	KindIO              ErrorKind = "io"
	KindConfig          ErrorKind = "config"
)

// Common error codes.
const (
	ErrCodeManifestInvalid    = "ERR_MANIFEST_INVALID"
	ErrCodeNoTargets          = "ERR_NO_TARGETS"
	ErrCodeTargetNotFound     = "ERR_TARGET_NOT_FOUND"
	ErrCodeFileNotFound       = "ERR_FILE_NOT_FOUND"
	ErrCodeXMLMalformed       = "ERR_XML_MALFORMED"
	ErrCodeInvalidRoot        = "ERR_INVALID_ROOT"
	ErrCodeMissingAttribute   = "ERR_MISSING_ATTRIBUTE"
	ErrCodeMissingBody        = "ERR_MISSING_BODY"
	ErrCodeTemplateNotFound   = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeUnboundPlaceholder = "ERR_UNBOUND_PLACEHOLDER"
	ErrCodeUnknownClass       = "ERR_UNKNOWN_CLASS"
	ErrCodeMaxDepth           = "ERR_MAX_DEPTH"
	ErrCodeCircularInclude    = "ERR_CIRCULAR_INCLUDE"
	ErrCodeOpenFile           = "ERR_OPEN_FILE"
	ErrCodeCreateDir          = "ERR_CREATE_DIR"
	ErrCodeWriteFailed        = "ERR_WRITE_FAILED"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
)

// BBCodeError is a structured error carrying the failing file and target.
type BBCodeError struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Cause    error
	FilePath string
	Target   string
	Context  map[string]interface{}
}

// Error implements the error interface.
//
// The rendering mirrors the CLI output: "target main: 'lib.bbxml': message: cause".
func (e *BBCodeError) Error() string {
	var parts []string

	if e.Target != "" {
		parts = append(parts, "target "+e.Target+":")
	}

	if e.FilePath != "" {
		parts = append(parts, fmt.Sprintf("'%s':", e.FilePath))
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BBCodeError) Unwrap() error {
	return e.Cause
}

// Is matches another BBCodeError with the same kind and code.
func (e *BBCodeError) Is(target error) bool {
	var t *BBCodeError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *BBCodeError) WithContext(key string, value interface{}) *BBCodeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the document the error was raised for. An already set
// path is kept so the innermost document of an include chain is reported.
func (e *BBCodeError) WithFile(path string) *BBCodeError {
	if e.FilePath == "" {
		e.FilePath = path
	}

	return e
}

// WithTarget records the build target.
func (e *BBCodeError) WithTarget(target string) *BBCodeError {
	e.Target = target

	return e
}

// Error creation functions

// NewManifestError creates a project manifest error.
func NewManifestError(code, message string, cause error) *BBCodeError {
	return &BBCodeError{
		Kind:    KindManifest,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewTargetNotFoundError reports a target absent from the manifest.
func NewTargetNotFoundError(target string) *BBCodeError {
	return &BBCodeError{
		Kind:    KindTargetNotFound,
		Code:    ErrCodeTargetNotFound,
		Message: fmt.Sprintf("Target '%s' not found", target),
	}
}

// NewFileNotFoundError reports an include or target source that could not be resolved.
func NewFileNotFoundError(filename string) *BBCodeError {
	return &BBCodeError{
		Kind:    KindFileNotFound,
		Code:    ErrCodeFileNotFound,
		Message: fmt.Sprintf("File '%s' not found", filename),
	}
}

// NewXMLParseError wraps a parser diagnostic for the given document.
func NewXMLParseError(path string, cause error) *BBCodeError {
	return &BBCodeError{
		Kind:     KindXMLParse,
		Code:     ErrCodeXMLMalformed,
		Message:  "Failed to parse XML",
		Cause:    cause,
		FilePath: path,
	}
}

// NewInvalidRootError reports a document whose root tag is not the expected one.
func NewInvalidRootError(path, want, got string) *BBCodeError {
	return &BBCodeError{
		Kind:     KindXMLParse,
		Code:     ErrCodeInvalidRoot,
		Message:  fmt.Sprintf("Not a %s file, invalid root tag '%s'", want, got),
		FilePath: path,
	}
}

// NewStructuralError creates an error for malformed but well-formed markup.
func NewStructuralError(code, message string) *BBCodeError {
	return &BBCodeError{
		Kind:    KindStructural,
		Code:    code,
		Message: message,
	}
}

// NewMissingAttributeError reports a required attribute missing on a tag.
func NewMissingAttributeError(attr, tag string) *BBCodeError {
	return NewStructuralError(
		ErrCodeMissingAttribute,
		fmt.Sprintf("Missing '%s' attribute in %s", attr, tag),
	).WithContext("attribute", attr).WithContext("tag", tag)
}

// NewTemplateNotFoundError reports an include of an unregistered template.
func NewTemplateNotFoundError(name string) *BBCodeError {
	return NewStructuralError(
		ErrCodeTemplateNotFound,
		fmt.Sprintf("Template '%s' not found", name),
	).WithContext("template", name)
}

// NewCircularIncludeError reports an include chain that loops back on itself.
// chain lists the documents from the first visit of the repeated document
// to the repeated document itself.
func NewCircularIncludeError(chain []string) *BBCodeError {
	return &BBCodeError{
		Kind:    KindCircularInclude,
		Code:    ErrCodeCircularInclude,
		Message: "Circular include: " + strings.Join(chain, " -> "),
		Context: map[string]interface{}{"chain": chain},
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *BBCodeError {
	return &BBCodeError{
		Kind:    KindIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a tool configuration error.
func NewConfigError(code, message string, cause error) *BBCodeError {
	return &BBCodeError{
		Kind:    KindConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsKind reports whether any error in err's chain is a BBCodeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var be *BBCodeError
	if errors.As(err, &be) {
		return be.Kind == kind
	}

	return false
}

// KindOf returns the kind of the first BBCodeError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var be *BBCodeError
	if errors.As(err, &be) {
		return be.Kind
	}

	return ""
}
