package protocol

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultLocationScheme = "ws"
	defaultLocationPort   = 50001
)

// resolveLocation turns a wire location into an absolute URI. The structured form
// falls back to currentHost when it omits a host.
func resolveLocation(v any, currentHost string) (string, error) {
	if s, ok := v.(string); ok {
		u, err := url.Parse(s)
		if err != nil || s == "" {
			return "", NewError(ErrorCodeBadPayload, "unparseable location "+strconv.Quote(s), ErrInvalidLocation)
		}
		return u.String(), nil
	}

	o, ok := asObject(v)
	if !ok {
		return "", ErrInvalidLocation
	}

	scheme, ok := o.str("scheme")
	if !ok {
		// older servers misspell the key
		scheme = o.strOr("sceme", defaultLocationScheme)
	}
	host := o.strOr("host", currentHost)
	if host == "" {
		return "", NewError(ErrorCodeBadPayload, "location has no host", ErrInvalidLocation)
	}
	port := o.uint64Or("port", defaultLocationPort)

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.FormatUint(port, 10)),
		Path:   "/" + strings.TrimPrefix(o.strOr("path", ""), "/"),
	}
	return u.String(), nil
}
