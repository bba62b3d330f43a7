// Package api is the HTTP surface of the house: bettor funding and wagering,
// administrative game lifecycle, and projection-backed reads. Commands go
// straight to the engine and return its receipts; queries go to the
// projection store and carry the watermark they were read at.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"WagerHouse/internal/engine"
	"WagerHouse/internal/fault"

	"github.com/go-playground/validator/v10"
)

// Rejection codes carried in the envelope. Machine clients branch on Code;
// Error is for humans.
const (
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodeState        = "state_conflict"
	CodeCapacity     = "capacity"
	CodeProof        = "unverified_proof"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal"
)

// Response is the envelope on every reply. Success payloads embed it with
// status 200; failures carry a code and a message.
type Response struct {
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

func OK() Response {
	return Response{Status: http.StatusOK}
}

func Err(status int, code, msg string) Response {
	return Response{Status: status, Code: code, Error: msg}
}

// FromFault maps an engine rejection to its HTTP form. Validation faults are
// 400s, except credential rejections, which are 401s. State conflicts are
// 409s and capacity rejections 422s. A failed randomness proof is a 400 with
// its own code so clients can tell a bad proof from a malformed request.
// Anything unclassified is a 500 with the detail withheld.
func FromFault(err error) Response {
	if errors.Is(err, engine.ErrCredentialMismatch) {
		return Err(http.StatusUnauthorized, CodeUnauthorized, "credential not recognized")
	}
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return Err(http.StatusBadRequest, CodeValidation, err.Error())
	case fault.KindState:
		return Err(http.StatusConflict, CodeState, err.Error())
	case fault.KindCapacity:
		return Err(http.StatusUnprocessableEntity, CodeCapacity, err.Error())
	case fault.KindExternalProof:
		return Err(http.StatusBadRequest, CodeProof, err.Error())
	default:
		return Err(http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// ValidationError flattens struct validation failures into one message.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", err.Field()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("field %s must be a uuid", err.Field()))
		case "hexadecimal", "len":
			msgs = append(msgs, fmt.Sprintf("field %s must be valid hex", err.Field()))
		case "gt", "gte", "lt", "lte":
			msgs = append(msgs, fmt.Sprintf("field %s is out of range", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Err(http.StatusBadRequest, CodeValidation, strings.Join(msgs, ", "))
}
