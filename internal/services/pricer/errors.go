package pricer

import (
	"io"
	"net"

	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
)

// ErrNoData means the venue recorded no trade for the requested minute.
// Callers treat it as "price unknown", not as a failure.
var ErrNoData = errors.New("no trade data for requested minute")

// APIStatusError is returned when the venue accepted the request but
// rejected it on its side (rate limit, bad symbol, maintenance).
type APIStatusError struct {
	Venue   string
	Message string
}

func (e *APIStatusError) Error() string {
	return e.Venue + " API error: " + e.Message
}

// IsTransient reports whether err looks like a connectivity failure
// that is worth retrying with the same request.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// IsAPIStatus reports whether err was produced by the exchange API itself
// rather than by the transport.
func IsAPIStatus(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return true
	}

	var statusErr *APIStatusError
	return errors.As(err, &statusErr)
}
