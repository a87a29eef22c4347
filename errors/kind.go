package errors

import "net/http"

// Kind classifies a failure for the caller. The set is closed: every error
// that crosses the dispatch boundary resolves to exactly one Kind.
type Kind int

const (
	// KindInternal is any failure that was not classified at its origin.
	KindInternal Kind = iota
	KindUnauthorized
	KindBadRequest
	KindNotFound
	KindServiceUnavailable
	KindAlreadyInProgress
)

// Kind markers. Their messages are namespaced so that an unrelated error
// with the same text never matches; only WithKind and the *f constructors
// attach a kind.
var (
	// ErrUnauthorized indicates a missing or invalid credential
	ErrUnauthorized = New("opsgate kind: unauthorized")

	// ErrBadRequest indicates arguments that failed validation
	ErrBadRequest = New("opsgate kind: bad_request")

	// ErrNotFound indicates the requested operation or resource does not exist
	ErrNotFound = New("opsgate kind: not_found")

	// ErrServiceUnavailable indicates a required capability is not initialized
	ErrServiceUnavailable = New("opsgate kind: service_unavailable")

	// ErrAlreadyInProgress indicates a single-flight operation is already running
	ErrAlreadyInProgress = New("opsgate kind: already_in_progress")
)

var kindSentinels = map[Kind]error{
	KindUnauthorized:       ErrUnauthorized,
	KindBadRequest:         ErrBadRequest,
	KindNotFound:           ErrNotFound,
	KindServiceUnavailable: ErrServiceUnavailable,
	KindAlreadyInProgress:  ErrAlreadyInProgress,
}

// lookup order matters only for errors marked with more than one kind;
// the most specific client-facing kinds win.
var kindOrder = []Kind{
	KindUnauthorized,
	KindBadRequest,
	KindNotFound,
	KindServiceUnavailable,
	KindAlreadyInProgress,
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindAlreadyInProgress:
		return "already_in_progress"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps the kind to a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindAlreadyInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WithKind marks err with kind without changing its message. KindInternal
// is the absence of a mark, so err is returned as is.
func WithKind(err error, kind Kind) error {
	sentinel, ok := kindSentinels[kind]
	if err == nil || !ok {
		return err
	}
	return Mark(err, sentinel)
}

// KindOf resolves the kind an error was marked with. Unmarked errors
// (and nil) are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kindOrder {
		if Is(err, kindSentinels[k]) {
			return k
		}
	}
	return KindInternal
}

// Unauthorizedf creates an error of KindUnauthorized
func Unauthorizedf(format string, args ...interface{}) error {
	return WithKind(Newf(format, args...), KindUnauthorized)
}

// BadRequestf creates an error of KindBadRequest
func BadRequestf(format string, args ...interface{}) error {
	return WithKind(Newf(format, args...), KindBadRequest)
}

// NotFoundf creates an error of KindNotFound
func NotFoundf(format string, args ...interface{}) error {
	return WithKind(Newf(format, args...), KindNotFound)
}

// ServiceUnavailablef creates an error of KindServiceUnavailable
func ServiceUnavailablef(format string, args ...interface{}) error {
	return WithKind(Newf(format, args...), KindServiceUnavailable)
}

// AlreadyInProgressf creates an error of KindAlreadyInProgress
func AlreadyInProgressf(format string, args ...interface{}) error {
	return WithKind(Newf(format, args...), KindAlreadyInProgress)
}
