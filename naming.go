package httptracer

import "strings"

// spanName formats the name of an exchange span from the URL scheme and the
// request method, e.g. "HTTP GET" or "HTTPS POST".
func spanName(scheme, method string) string {
	scheme = strings.ToUpper(urlScheme(scheme))
	if method == "" {
		return scheme
	}
	return scheme + " " + method
}
