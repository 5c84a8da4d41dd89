package httpimpl

import (
	"net/http"

	"github.com/bsv-blockchain/chainstate/errors"
	"github.com/labstack/echo/v4"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Status int32  `json:"status"`
	Code   int32  `json:"code"`
	Err    string `json:"error"`
}

func sendError(c echo.Context, status int, code int32, err error) error {
	e := &errorResponse{
		Status: int32(status), // nolint: gosec
		Code:   code,
		Err:    err.Error(),
	}

	return c.JSON(status, e)
}

// sendErrorFromErr picks the status from the error code of err.
func sendErrorFromErr(c echo.Context, err error) error {
	var uErr *errors.Error
	if !errors.As(err, &uErr) {
		return sendError(c, http.StatusInternalServerError, int32(errors.ERR_UNKNOWN), err)
	}

	status := http.StatusInternalServerError

	switch uErr.Code() {
	case errors.ERR_INVALID_ARGUMENT:
		status = http.StatusBadRequest
	case errors.ERR_NOT_FOUND, errors.ERR_BLOCK_NOT_FOUND:
		status = http.StatusNotFound
	case errors.ERR_CONTEXT_CANCELED, errors.ERR_SERVICE_UNAVAILABLE, errors.ERR_STORAGE_UNAVAILABLE:
		status = http.StatusServiceUnavailable
	}

	return sendError(c, status, int32(uErr.Code()), err)
}
