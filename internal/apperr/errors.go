package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "validation"
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodeAccountInactive Code = "account_inactive"
	CodeNotFound        Code = "not_found"
	CodeUpstream        Code = "upstream"
	CodeCancelled       Code = "cancelled"
	CodeInternal        Code = "internal"
)

// Localized user-facing messages.
const (
	MsgInvalidCredentials = "اسم المستخدم أو كلمة المرور غير صحيحة"
	MsgAccountInactive    = "الحساب معطل"
	MsgUnauthenticated    = "غير مصرح"
	MsgForbidden          = "غير مسموح"
	MsgUpstreamFallback   = "فشل الاتصال بالخادم الخارجي"
	MsgPhoneFallback      = "فشل جلب البيانات الهاتفية"
	MsgCancelled          = "تم إلغاء الطلب"
	MsgInternal           = "حدث خطأ داخلي"
)

// Error is the application error carried from services to the HTTP layer.
type Error struct {
	Code    Code
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can use errors.Is(err, apperr.New(code, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(message string, fields map[string][]string) *Error {
	return &Error{Code: CodeValidation, Message: message, Fields: fields}
}

func Upstream(message string, err error) *Error {
	if message == "" {
		message = MsgUpstreamFallback
	}
	return &Error{Code: CodeUpstream, Message: message, Err: err}
}

func Cancelled(err error) *Error {
	return &Error{Code: CodeCancelled, Message: MsgCancelled, Err: err}
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden, CodeAccountInactive:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
