package model

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

var (
	emailPattern = regexp.MustCompile("(?i)^[-!#$%&'*+/=?^_`{}|~0-9a-z]+(\\.[-!#$%&'*+/=?^_`{}|~0-9a-z]+)*" +
		`@(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}\.?$`)

	hostnamePattern = regexp.MustCompile(`(?i)^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:[a-z]{2,63}|xn--[a-z0-9-]{1,59})\.?$`)

	// Shape of a BCP 47 tag: hyphen-separated alphanumeric subtags of at
	// most eight characters, led by a language or a private-use singleton.
	languageShape = regexp.MustCompile(`^(?:[A-Za-z]{2,8}|[xXiI])(?:-[A-Za-z0-9]{1,8})*$`)
)

var urlSchemes = map[string]bool{"http": true, "https": true, "ftp": true, "ftps": true}

func validEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || !urlSchemes[strings.ToLower(u.Scheme)] || u.Opaque != "" {
		return false
	}
	host := u.Hostname()
	switch {
	case host == "":
		return false
	case strings.EqualFold(host, "localhost"):
	case net.ParseIP(host) != nil:
	case !hostnamePattern.MatchString(host):
		return false
	}
	return true
}

// validLanguage accepts well-formed tags even when a subtag is not in the
// registry; malformed tags are rejected.
func validLanguage(s string) bool {
	if !languageShape.MatchString(s) {
		return false
	}
	if _, err := language.Parse(s); err != nil {
		var ve language.ValueError
		return errors.As(err, &ve)
	}
	return true
}
