// Package errors provides coded errors. Every error carries an ERR code that survives
// wrapping, so callers match on the code with Is rather than on the message.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

type Error struct {
	code       ERR
	message    string
	wrappedErr error
	data       ErrDataI
}

// Error formats as "CODE (n): message[: wrapped][ key=value ...]".
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "%s (%d): %s", e.code, e.code, e.message)

	if e.wrappedErr != nil && e.wrappedErr.Error() != e.message {
		fmt.Fprintf(&sb, ": %v", e.wrappedErr)
	}

	if e.data != nil {
		sb.WriteString(e.data.Error())
	}

	return sb.String()
}

// Is reports whether e or any coded error it wraps has the code of target. A target that
// is not an *Error matches on its message.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	targetError, ok := target.(*Error)
	if !ok {
		return strings.Contains(e.Error(), target.Error())
	}

	for cur := e; cur != nil; {
		if cur.code == targetError.code {
			return true
		}

		next, ok := cur.wrappedErr.(*Error)
		if !ok {
			return false
		}

		cur = next
	}

	return false
}

func (e *Error) As(target interface{}) bool {
	if e == nil {
		return false
	}

	if targetErr, ok := target.(**Error); ok {
		*targetErr = e
		return true
	}

	if data, ok := e.data.(error); ok && errors.As(data, target) {
		return true
	}

	if e.wrappedErr != nil {
		return errors.As(e.wrappedErr, target)
	}

	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.wrappedErr
}

func (e *Error) Code() ERR {
	if e == nil {
		return ERR_UNKNOWN
	}

	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}

	return e.message
}

// SetData attaches a key/value pair that is appended to the message.
func (e *Error) SetData(key string, value interface{}) {
	if e.data == nil {
		e.data = &ErrData{}
	}

	e.data.SetData(key, value)
}

func (e *Error) GetData(key string) interface{} {
	if e.data == nil {
		return nil
	}

	return e.data.GetData(key)
}

// New creates an error with the given code. If the last param is an error it is wrapped and
// the remaining params format the message.
func New(code ERR, message string, params ...interface{}) *Error {
	var wErr error

	if len(params) > 0 {
		switch err := params[len(params)-1].(type) {
		case *Error:
			wErr = err
			params = params[:len(params)-1]
		case error:
			wErr = &Error{code: ERR_ERROR, message: err.Error(), wrappedErr: err}
			params = params[:len(params)-1]
		}
	}

	if _, ok := ERR_name[int32(code)]; !ok {
		return &Error{code: code, message: "invalid error code", wrappedErr: wErr}
	}

	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}

	return &Error{code: code, message: message, wrappedErr: wErr}
}

// Join returns an error concatenating the messages of all non-nil errors, or nil.
func Join(errs ...error) error {
	var messages []string

	for _, err := range errs {
		if err != nil {
			messages = append(messages, err.Error())
		}
	}

	if len(messages) == 0 {
		return nil
	}

	return errors.New(strings.Join(messages, ", "))
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// AsData walks the wrap chain looking for error data matching target.
func AsData(err error, target interface{}) bool {
	for {
		e, ok := err.(*Error)
		if !ok {
			return false
		}

		if e.data != nil && errors.As(e.data, target) {
			return true
		}

		err = e.wrappedErr
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
