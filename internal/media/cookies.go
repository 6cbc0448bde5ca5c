package media

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// newCookieJar decodes a base64-encoded Netscape cookies.txt blob in to a
// cookie jar suitable for priming the download client. Providers throttle
// or reject anonymous requests for some media; a signed-in session's
// cookies sidestep that.
func newCookieJar(encoded string) (http.CookieJar, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("cookies blob is not valid base64: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	perDomain := make(map[string][]*http.Cookie)
	for lineNo, line := range strings.Split(string(raw), "\n") {
		cookie, domain, err := parseCookieLine(line)
		if err != nil {
			return nil, fmt.Errorf("cookies blob line %d: %w", lineNo+1, err)
		} else if cookie == nil {
			continue
		}

		perDomain[domain] = append(perDomain[domain], cookie)
	}

	for domain, cookies := range perDomain {
		jar.SetCookies(&url.URL{Scheme: "https", Host: strings.TrimPrefix(domain, ".")}, cookies)
	}

	return jar, nil
}

// parseCookieLine parses a single Netscape-format cookie line (seven
// tab-separated fields). Comments and blank lines yield a nil cookie,
// except for the #HttpOnly_ prefix which marks a real cookie.
func parseCookieLine(line string) (*http.Cookie, string, error) {
	line = strings.TrimRight(line, "\r")
	httpOnly := false
	if strings.HasPrefix(line, "#HttpOnly_") {
		httpOnly = true
		line = strings.TrimPrefix(line, "#HttpOnly_")
	} else if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
		return nil, "", nil
	}

	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, "", fmt.Errorf("expected 7 tab-separated fields, found %d", len(fields))
	}

	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("expiry %q is not an integer", fields[4])
	}

	cookie := &http.Cookie{
		Name:     fields[5],
		Value:    fields[6],
		Path:     fields[2],
		Domain:   fields[0],
		Secure:   strings.EqualFold(fields[3], "TRUE"),
		HttpOnly: httpOnly,
	}
	if expires > 0 {
		cookie.Expires = time.Unix(expires, 0)
	}

	return cookie, fields[0], nil
}
