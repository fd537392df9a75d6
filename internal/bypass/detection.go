// Package bypass recognizes bot-protection challenge pages so a blocked
// product fetch is reported as blocked instead of parsed as an empty page.
package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Response is the part of an HTTP exchange the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Signature describes one vendor's block page. A response matches when its
// status is listed and any of the server, header or body markers is present.
type Signature struct {
	Vendor   string
	Statuses []int
	Server   []string // lowercase substrings of the Server header
	Headers  []string // header names whose presence is enough
	Body     [][]byte
}

func (s Signature) match(r Response) bool {
	if !slices.Contains(s.Statuses, r.StatusCode) {
		return false
	}
	server := strings.ToLower(r.Header.Get("Server"))
	for _, m := range s.Server {
		if strings.Contains(server, m) {
			return true
		}
	}
	for _, h := range s.Headers {
		if r.Header.Get(h) != "" {
			return true
		}
	}
	for _, b := range s.Body {
		if bytes.Contains(r.Body, b) {
			return true
		}
	}
	return false
}

// DefaultSignatures returns the vendors checked by Detect when none are given.
func DefaultSignatures() []Signature {
	return []Signature{
		{
			Vendor:   "Cloudflare",
			Statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
			Server:   []string{"cloudflare"},
			Body: [][]byte{
				[]byte("cf-browser-verification"),
				[]byte("cf-turnstile"),
				[]byte("Attention Required! | Cloudflare"),
			},
		},
		{
			Vendor:   "Akamai",
			Statuses: []int{http.StatusForbidden},
			Server:   []string{"akamai"},
		},
		{
			Vendor:   "DataDome",
			Statuses: []int{http.StatusForbidden},
			Server:   []string{"datadome"},
			Headers:  []string{"X-DataDome", "X-DataDome-Response"},
			Body:     [][]byte{[]byte("geo.captcha-delivery.com")},
		},
		{
			Vendor:   "PerimeterX",
			Statuses: []int{http.StatusForbidden},
			Headers:  []string{"X-Px-Captcha"},
			Body: [][]byte{
				[]byte("client.perimeterx.net"),
				[]byte("px-captcha"),
				[]byte("_pxBlock"),
			},
		},
	}
}

// Detect reports the first vendor whose signature matches r. A nil sigs
// slice means DefaultSignatures.
func Detect(r Response, sigs []Signature) (vendor string, blocked bool) {
	if sigs == nil {
		sigs = DefaultSignatures()
	}
	if r.Header == nil {
		r.Header = http.Header{}
	}
	for _, s := range sigs {
		if s.match(r) {
			return s.Vendor, true
		}
	}
	// Akamai's generic denial page has no reliable header.
	if r.StatusCode == http.StatusForbidden &&
		bytes.Contains(r.Body, []byte("Reference #")) &&
		bytes.Contains(r.Body, []byte("Access Denied")) {
		return "Akamai", true
	}
	return "", false
}
