package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a BBCodeError if the
// input is not already one. An existing BBCodeError is returned unchanged so
// the innermost kind and file survive being passed up an include chain.
func Wrap(err error, kind ErrorKind, code, message string) *BBCodeError {
	if err == nil {
		return nil
	}

	var be *BBCodeError
	if errors.As(err, &be) {
		return be
	}

	return &BBCodeError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error.
func WrapIO(err error, code, message string) *BBCodeError {
	return Wrap(err, KindIO, code, message)
}

// Join combines errors the way the standard library does, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// AttachFile records path on err when it is a BBCodeError without a file.
// Other errors are returned as is.
func AttachFile(err error, path string) error {
	var be *BBCodeError
	if errors.As(err, &be) {
		be.WithFile(path)
	}
	return err
}
