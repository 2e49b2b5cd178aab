package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/model"
	"github.com/copperline/orderd/internal/storage"
)

// writeJSON writes a JSON response with the standard envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Data: data,
		Meta: responseMeta(r),
	})
}

// writePage writes a paginated list response. Total counts every record of
// the resource, FilteredTotal the records matching the caller's filters, and
// data is one page of the filtered set.
func writePage(w http.ResponseWriter, r *http.Request, page storage.OrderPage, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(model.PageResponse{
		Total:         page.Total,
		FilteredTotal: page.FilteredTotal,
		Data:          data,
		Meta:          responseMeta(r),
	})
}

// writeError translates err into the standard error envelope. Only the
// classification code and its caller-safe message cross the wire; anything
// unclassified is reported as internal with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(code))
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{
			Code:    string(code),
			Message: apperr.MessageOf(err),
		},
		Meta: responseMeta(r),
	})
}

func responseMeta(r *http.Request) model.ResponseMeta {
	return model.ResponseMeta{
		RequestID: RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// decodeJSON decodes a JSON request body into the target struct, rejecting
// unknown fields and bodies over maxBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// decodeError classifies a JSON decode failure for the caller. Oversized
// bodies and malformed JSON are both the caller's fault, so everything maps
// to invalid-argument with a message naming the problem.
func decodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return apperr.New(apperr.CodeInvalidArgument,
			fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit))
	}
	return apperr.Wrap(apperr.CodeInvalidArgument, "invalid JSON body: "+err.Error(), err)
}
