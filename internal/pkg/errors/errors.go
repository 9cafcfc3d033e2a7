package errors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalid          = errors.New("invalid")
	ErrConflict         = errors.New("conflict")
	ErrTooMany          = errors.New("too many requests")
	ErrInternal         = errors.New("internal")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrUpstream         = errors.New("upstream failure")
	ErrStreamTransport  = errors.New("stream transport failure")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsUnsupportedMedia(err error) bool {
	return errors.Is(err, ErrUnsupportedMedia)
}

func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
