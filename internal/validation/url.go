package validation

import (
	"net/url"
	"strings"
)

// BaseURL checks that raw is an absolute http(s) URL without query or
// fragment, suitable as the root of an upstream API. With requireHTTPS only
// https is accepted.
func BaseURL(field, raw string, requireHTTPS bool) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Error{Field: field, Message: "must be a valid URL"}
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch {
	case scheme == "":
		return Error{Field: field, Message: "must include a scheme"}
	case scheme != "http" && scheme != "https":
		return Error{Field: field, Message: "must use http or https"}
	case requireHTTPS && scheme != "https":
		return Error{Field: field, Message: "must use https"}
	case parsed.Host == "":
		return Error{Field: field, Message: "must include a host"}
	case parsed.RawQuery != "" || parsed.Fragment != "":
		return Error{Field: field, Message: "must not contain a query or fragment"}
	}
	return nil
}
