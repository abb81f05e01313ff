package session

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

func sameSiteToCdp(sameSite string) network.CookieSameSite {
	switch strings.ToLower(sameSite) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}

func expiresTime(expires float64) (time.Time, bool) {
	if expires <= 0 {
		return time.Time{}, false
	}
	sec, frac := math.Modf(expires)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

// ToCookieParams converts cookies into the parameters of the devtools Network.setCookies call.
func ToCookieParams(cookies []Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, len(cookies))
	for i, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: sameSiteToCdp(c.SameSite),
		}
		if at, ok := expiresTime(c.Expires); ok {
			expires := cdp.TimeSinceEpoch(at)
			param.Expires = &expires
		}
		out[i] = param
	}
	return out
}

// FromNetworkCookies converts cookies read over the devtools protocol.
func FromNetworkCookies(cookies []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

func sameSiteToHttp(sameSite string) http.SameSite {
	switch strings.ToLower(sameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	}
	return http.SameSiteDefaultMode
}

// ToHttpCookies converts cookies for a net/http cookie jar. The leading dot of a domain
// cookie is dropped since net/http matches subdomains on its own.
func ToHttpCookies(cookies []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, len(cookies))
	for i, c := range cookies {
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.TrimPrefix(c.Domain, "."),
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: sameSiteToHttp(c.SameSite),
		}
		if at, ok := expiresTime(c.Expires); ok {
			cookie.Expires = at
		}
		out[i] = cookie
	}
	return out
}
