package responses

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// PublicError maps err onto the body a client may see and the HTTP status
// registered for its code. Untyped errors surface as INTERNAL_ERROR.
func PublicError(err error) (ErrorBody, int) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := ErrorBody{Code: string(typed.Code()), Message: meta.PublicMessage}
	if !opaque(typed.Code()) && typed.Message() != "" {
		body.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}
	return body, meta.HTTPStatus
}

// opaque codes never echo their message, which may carry driver text.
func opaque(code pkgerrors.Code) bool {
	return code == pkgerrors.CodeInternal || code == pkgerrors.CodeDependency
}

// WriteError renders err and logs it: server faults at error level with a
// stack, client rejections at warn.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = pkgerrors.New(pkgerrors.CodeInternal, "nil error written")
	}
	body, status := PublicError(err)

	if logg != nil {
		ctx = logg.WithField(ctx, "http_status", status)
		if status >= http.StatusInternalServerError {
			logg.Error(logg.WithError(ctx, err), "request failed", nil)
		} else {
			logg.Warn(logg.WithError(ctx, err), "request rejected")
		}
	}
	writeJSON(w, status, ErrorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// headers are gone once encoding starts, so a failure here is unreportable
	_ = json.NewEncoder(w).Encode(payload)
}
