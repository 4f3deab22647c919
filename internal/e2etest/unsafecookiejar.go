package e2etest

import (
	"github.com/myrjola/sagaboard/internal/errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// unsafeCookieJar keeps Secure cookies over plain HTTP so that session cookies survive against a local test server.
type unsafeCookieJar struct {
	jar *cookiejar.Jar
}

func newUnsafeCookieJar() (*unsafeCookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "new cookie jar")
	}
	return &unsafeCookieJar{jar: jar}, nil
}

func (u *unsafeCookieJar) SetCookies(u2 *url.URL, cookies []*http.Cookie) {
	relaxed := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		c := *cookie
		c.Secure = false
		relaxed = append(relaxed, &c)
	}
	u.jar.SetCookies(u2, relaxed)
}

func (u *unsafeCookieJar) Cookies(u2 *url.URL) []*http.Cookie {
	return u.jar.Cookies(u2)
}
