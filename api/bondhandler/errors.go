package bondhandler

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/slb-bond-backend/interfaces"
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

var statusByError = []struct {
	err    error
	status int
}{
	{interfaces.ErrUnauthorized, http.StatusForbidden},
	{interfaces.ErrInvalidState, http.StatusConflict},
	{interfaces.ErrPaused, http.StatusLocked},
	{interfaces.ErrOutOfRange, http.StatusUnprocessableEntity},
	{interfaces.ErrNotFound, http.StatusNotFound},
	{interfaces.ErrHashMismatch, http.StatusUnprocessableEntity},
	{interfaces.ErrOwnerConflict, http.StatusConflict},
	{interfaces.ErrInvalidArgument, http.StatusBadRequest},
}

// StatusFor maps an operation error to its HTTP status.
func StatusFor(err error) int {
	for _, s := range statusByError {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// decodeHex accepts digests with or without the 0x prefix.
func decodeHex(s string) ([]byte, error) {
	if len(s) < 2 || (s[:2] != "0x" && s[:2] != "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
