// Package apperr carries the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error for callers. The string value is the wire code.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindUnauthorized     Kind = "unauthorized"
	KindBadRequest       Kind = "bad_request"
	KindRoundClosed      Kind = "closed_round"
	KindQuotaFull        Kind = "quota_full"
	KindUnsupportedMedia Kind = "unsupported_media"
	KindPayloadTooLarge  Kind = "payload_too_large"
	KindNoImages         Kind = "no_images"
	KindBadStatus        Kind = "bad_status"
	KindBadDateFormat    Kind = "bad_date_format"
	KindAnalysisFailed   Kind = "analysis_failed"
	KindStoreFailure     Kind = "store_failure"
)

// Error wraps a cause with its kind and optional details for the response body.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so errors.Is(err, apperr.NotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key string, val any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = val
	return &cp
}

// Sentinels for errors.Is checks.
var (
	NotFound         = &Error{Kind: KindNotFound}
	Forbidden        = &Error{Kind: KindForbidden}
	RoundClosed      = &Error{Kind: KindRoundClosed}
	QuotaFull        = &Error{Kind: KindQuotaFull}
	UnsupportedMedia = &Error{Kind: KindUnsupportedMedia}
	PayloadTooLarge  = &Error{Kind: KindPayloadTooLarge}
	NoImages         = &Error{Kind: KindNoImages}
	BadStatus        = &Error{Kind: KindBadStatus}
	BadDateFormat    = &Error{Kind: KindBadDateFormat}
	AnalysisFailed   = &Error{Kind: KindAnalysisFailed}
	StoreFailure     = &Error{Kind: KindStoreFailure}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil; an err that already
// carries a kind is returned unchanged.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if msg == "" {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Store marks an unexpected persistence error; the original message is kept.
func Store(err error) error { return Wrap(KindStoreFailure, err, "") }

// KindOf reports the kind of err, defaulting to store_failure for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStoreFailure
}

// DetailsOf returns the details attached to err, if any.
func DetailsOf(err error) map[string]any {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Details
	}
	return nil
}

// HTTPStatus maps a kind onto the transport's status convention.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindAnalysisFailed:
		return http.StatusBadGateway
	case KindStoreFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
