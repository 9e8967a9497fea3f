package commerce

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultFaviconService = "https://www.google.com/s2/favicons"

// Hostname parses an absolute URL and returns its host name.
func Hostname(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return "", false
	}
	return u.Hostname(), true
}

// HostnameOr returns the host name of raw, or raw itself when it does not
// parse.
func HostnameOr(raw string) string {
	if host, ok := Hostname(raw); ok {
		return host
	}
	return raw
}

// Retailer derives a display name from the first label of the host,
// e.g. https://www.argos.co.uk/x -> "Argos".
func Retailer(raw string) string {
	host, ok := Hostname(raw)
	if !ok {
		return "Unknown"
	}
	label, _, _ := strings.Cut(strings.TrimPrefix(host, "www."), ".")
	first, size := utf8.DecodeRuneInString(label)
	if first == utf8.RuneError {
		return label
	}
	return string(unicode.ToUpper(first)) + label[size:]
}

func FaviconURL(service, hostname string) string {
	if service == "" {
		service = DefaultFaviconService
	}
	return service + "?domain=" + url.QueryEscape(hostname) + "&sz=32"
}
