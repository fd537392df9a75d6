package useragent

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"sync/atomic"
)

// DefaultAcceptLanguage matches the storefront locale the search is biased to.
const DefaultAcceptLanguage = "zh-TW,zh;q=0.9,en-US;q=0.6,en;q=0.4"

// DefaultPool holds current desktop browser User-Agents.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// Identity is the set of browser headers presented for one request.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
}

// Apply writes the identity onto h along with a browser-like Accept header.
func (id Identity) Apply(h http.Header) {
	if id.UserAgent != "" {
		h.Set("User-Agent", id.UserAgent)
	}
	if id.AcceptLanguage != "" {
		h.Set("Accept-Language", id.AcceptLanguage)
	}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}

// Pool rotates User-Agents under a fixed Accept-Language. Safe for concurrent use.
type Pool struct {
	uas     []string
	lang    string
	counter atomic.Uint64
}

// NewPool creates a pool. Empty inputs fall back to DefaultPool and
// DefaultAcceptLanguage.
func NewPool(uas []string, acceptLanguage string) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	if acceptLanguage == "" {
		acceptLanguage = DefaultAcceptLanguage
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{uas: copied, lang: acceptLanguage}
}

// Next returns identities in round-robin order.
func (p *Pool) Next() Identity {
	idx := p.counter.Add(1) - 1
	return Identity{
		UserAgent:      p.uas[idx%uint64(len(p.uas))],
		AcceptLanguage: p.lang,
	}
}

// Random picks an identity using crypto/rand, falling back to Next on error.
func (p *Pool) Random() Identity {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.Next()
	}
	return Identity{UserAgent: p.uas[n.Int64()], AcceptLanguage: p.lang}
}

// Len reports the number of User-Agents in rotation.
func (p *Pool) Len() int {
	return len(p.uas)
}
