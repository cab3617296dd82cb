package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeNotFound                Code = "NOT_FOUND"
	CodeClosedHeader            Code = "CLOSED_HEADER"
	CodeOverAllocation          Code = "OVER_ALLOCATION"
	CodeOverReceipt             Code = "OVER_RECEIPT"
	CodeDuplicateArrival        Code = "DUPLICATE_ARRIVAL"
	CodeUnknownLine             Code = "UNKNOWN_LINE"
	CodeUnknownStatus           Code = "UNKNOWN_STATUS"
	CodeInsufficientInventory   Code = "INSUFFICIENT_INVENTORY"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
	CodeContainmentRequired     Code = "CONTAINMENT_REQUIRED"
	CodeTerminalState           Code = "TERMINAL_STATE"
	CodeConcurrentModification  Code = "CONCURRENT_MODIFICATION"
	CodeIncompleteReceipt       Code = "INCOMPLETE_RECEIPT"
	CodeReconciliation          Code = "RECONCILIATION_ERROR"
	CodeIdempotency             Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal                Code = "INTERNAL_ERROR"
	CodeDependency              Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeClosedHeader: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "purchase order is not open",
		DetailsAllowed: true,
	},
	CodeOverAllocation: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "demand link exceeds ordered quantity",
		DetailsAllowed: true,
	},
	CodeOverReceipt: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "arrival exceeds remaining quantity",
		DetailsAllowed: true,
	},
	CodeDuplicateArrival: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "arrival already posted",
		DetailsAllowed: true,
	},
	CodeUnknownLine: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "purchase order line not found",
	},
	CodeUnknownStatus: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "unknown status",
		DetailsAllowed: true,
	},
	CodeInsufficientInventory: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "insufficient inventory",
		DetailsAllowed: true,
	},
	CodeInvalidStatusTransition: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeContainmentRequired: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "containment required",
		DetailsAllowed: true,
	},
	CodeTerminalState: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "inventory is retired",
		DetailsAllowed: true,
	},
	CodeConcurrentModification: {
		HTTPStatus:    http.StatusConflict,
		Retryable:     true,
		PublicMessage: "concurrent modification, retry",
	},
	CodeIncompleteReceipt: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "purchase order has unreceived quantity",
		DetailsAllowed: true,
	},
	CodeReconciliation: {
		HTTPStatus:     http.StatusOK,
		PublicMessage:  "reconciliation discrepancies found",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "idempotency key reused with a different request",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Retryable reports whether callers may safely retry the failed operation.
func (e *Error) Retryable() bool {
	return MetadataFor(e.Code()).Retryable
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries the provided code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
