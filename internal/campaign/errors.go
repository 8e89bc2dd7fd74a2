package campaign

import "errors"

var (
	// Ping and service-call failures.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrJSONDecoding         = errors.New("json decoding failed")
	ErrRequest              = errors.New("request failed")
	ErrTooManyRequests      = errors.New("too many requests")
	ErrResourceFetch        = errors.New("resource fetch failed")

	// Matcher races. Callers skip the campaign on either of these.
	ErrCouldNotFindRequestedSetOfEvents = errors.New("could not find requested set of events")
	ErrSetAlreadyUsed                   = errors.New("set of events already used")
)

// isFatalPingError reports errors that must not be retried.
func isFatalPingError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrJSONDecoding)
}
