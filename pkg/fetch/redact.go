package fetch

import (
	"net/url"
)

const redacted = "REDACTED"

// Redact renders u with the value of the secret query parameter masked.
func Redact(u *url.URL, param string) string {
	if u == nil {
		return ""
	}
	if param == "" {
		return u.String()
	}

	query := u.Query()
	if _, ok := query[param]; !ok {
		return u.String()
	}

	query.Set(param, redacted)
	clone := *u
	clone.RawQuery = query.Encode()
	return clone.String()
}
