package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.Code())
	require.Equal(t, "resource not found", err.Message())

	secondErr := New(ERR_INVALID_ARGUMENT, "[Register][%s] failed to decode outpoint: ", "_test_string_", err)
	thirdErr := New(ERR_INVARIANT_VIOLATION, "[Register][%s] conflict: ", "_test_string_", secondErr)
	anotherErr := New(ERR_INVARIANT_VIOLATION, "another conflict")
	fourthErr := New(ERR_SERVICE_ERROR, "older error: ", thirdErr)
	fifthErr := New(ERR_STORAGE_ERROR, "storage wrapped", fourthErr)

	require.True(t, anotherErr.Is(thirdErr))
	require.True(t, fourthErr.Is(New(ERR_INVARIANT_VIOLATION, "")))
	require.True(t, fourthErr.Is(ErrInvariantViolation))

	require.True(t, fourthErr.Is(err))
	require.True(t, fifthErr.Is(thirdErr))
	require.True(t, fifthErr.Is(err))

	require.False(t, anotherErr.Is(fourthErr))
	require.False(t, fifthErr.Is(ErrBlockNotFound))
}

func Test_FmtErrorCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")

	fmtError := fmt.Errorf("error: %w", err)
	require.NotNil(t, fmtError)

	secondErr := New(ERR_INVALID_ARGUMENT, "[Audit][%s] failed: ", "_test_string_", fmtError)
	require.NotNil(t, secondErr)

	// the fmt wrapper is converted into a generic error, so the code is no longer visible to Is
	require.False(t, secondErr.Is(err))

	// but the standard library can still reach it through Unwrap
	require.True(t, errors.Is(secondErr, err))
}

func TestNewFormatsAndWraps(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("failed to write %d records", 3, cause)

	var tErr *Error
	require.True(t, As(err, &tErr))
	assert.Equal(t, ERR_STORAGE_ERROR, tErr.Code())
	assert.Equal(t, "failed to write 3 records", tErr.Message())
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "STORAGE_ERROR")
}

func TestInvalidCode(t *testing.T) {
	err := New(ERR(12345), "should not be used")
	assert.Equal(t, "invalid error code", err.Message())
	assert.Equal(t, "12345", err.Code().String())
}

func TestContextCanceledIsDistinct(t *testing.T) {
	err := NewContextCanceledError("[Audit] scan interrupted", context.Canceled)

	assert.True(t, Is(err, ErrContextCanceled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, Is(err, ErrReadError))
	assert.False(t, Is(err, ErrStorageError))
}

func TestErrorData(t *testing.T) {
	err := New(ERR_STORAGE_ERROR, "failed to write record")
	err.SetData("operation", "RegisterDoubleSpendAttempt")
	err.SetData("outpoint", "abcd:1")

	assert.Equal(t, "abcd:1", err.GetData("outpoint"))
	assert.Contains(t, err.Error(), "operation=RegisterDoubleSpendAttempt outpoint=abcd:1")

	var data *ErrData
	require.True(t, AsData(New(ERR_SERVICE_ERROR, "outer", err), &data))
	assert.Equal(t, "RegisterDoubleSpendAttempt", data.GetData("operation"))
}

func TestJoin(t *testing.T) {
	assert.Nil(t, Join(nil, nil))

	err := Join(NewReadError("a"), nil, NewStorageError("b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READ_ERROR")
	assert.Contains(t, err.Error(), "STORAGE_ERROR")
}

func TestNilError(t *testing.T) {
	var err *Error

	assert.Equal(t, "<nil>", err.Error())
	assert.Equal(t, ERR_UNKNOWN, err.Code())
	assert.Nil(t, err.Unwrap())
	assert.False(t, err.Is(ErrNotFound))
}

func TestCodeTables(t *testing.T) {
	require.Len(t, ERR_value, len(ERR_name))

	for code, name := range ERR_name {
		assert.Equal(t, code, ERR_value[name], name)
		assert.Equal(t, name, ERR(code).String())
	}

	// codes missing from the tables are rejected
	assert.Equal(t, "invalid error code", New(ERR(32), "conflict").Message())
}
