// Package signer produces OAuth 1.0a HMAC-SHA1 signatures (RFC 5849).
//
// Sign is pure: the nonce and timestamp are supplied by the caller, so the
// same request always yields the same signature.
package signer

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/dghubble/oauth1"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"
)

// Request is everything that goes into one signature.
type Request struct {
	Method string
	URL    string
	// Params are the form body parameters. Query parameters are read from URL.
	Params url.Values
	// OAuthParams are extra protocol parameters such as oauth_callback or
	// oauth_verifier. They are signed and sent in the header.
	OAuthParams map[string]string

	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string

	Nonce     string
	Timestamp int64
}

// Authorization holds the signed oauth_* fields.
type Authorization struct {
	Params    map[string]string
	Signature string
}

// Header renders the Authorization header value.
func (a Authorization) Header() string {
	keys := make([]string, 0, len(a.Params))
	for k := range a.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, `%s="%s"`, PercentEncode(k), PercentEncode(a.Params[k]))
	}
	return buf.String()
}

// Sign returns the authorization fields for req. The only failure is a
// malformed URL.
func Sign(req Request) (Authorization, error) {
	oauthParams := map[string]string{
		"oauth_consumer_key":     req.ConsumerKey,
		"oauth_nonce":            req.Nonce,
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(req.Timestamp, 10),
		"oauth_version":          Version,
	}
	if req.Token != "" {
		oauthParams["oauth_token"] = req.Token
	}
	for k, v := range req.OAuthParams {
		oauthParams[k] = v
	}

	base, err := BaseString(req.Method, req.URL, req.Params, oauthParams)
	if err != nil {
		return Authorization{}, err
	}

	hmacSigner := &oauth1.HMACSigner{ConsumerSecret: PercentEncode(req.ConsumerSecret)}
	signature, err := hmacSigner.Sign(PercentEncode(req.TokenSecret), base)
	if err != nil {
		return Authorization{}, fmt.Errorf("hmac sign: %w", err)
	}

	oauthParams["oauth_signature"] = signature
	return Authorization{Params: oauthParams, Signature: signature}, nil
}

// BaseString builds the signature base string of RFC 5849 section 3.4.1.
func BaseString(method, rawURL string, params url.Values, oauthParams map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("url must be absolute")
	}

	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params)+len(oauthParams))
	add := func(k, v string) {
		pairs = append(pairs, pair{PercentEncode(k), PercentEncode(v)})
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			add(k, v)
		}
	}
	for k, vs := range params {
		for _, v := range vs {
			add(k, v)
		}
	}
	for k, v := range oauthParams {
		if k == "oauth_signature" {
			continue
		}
		add(k, v)
	}
	// Sorted by encoded name, then by encoded value.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	joined := make([]string, len(pairs))
	for i, p := range pairs {
		joined[i] = p.k + "=" + p.v
	}

	return strings.Join([]string{
		strings.ToUpper(method),
		PercentEncode(baseURL(u)),
		PercentEncode(strings.Join(joined, "&")),
	}, "&"), nil
}

func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		if !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
			host = host + ":" + port
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// PercentEncode encodes s per RFC 3986 section 2.1, leaving only the
// unreserved characters as is.
func PercentEncode(s string) string {
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			buf.WriteByte(c)
			continue
		}
		fmt.Fprintf(&buf, "%%%02X", c)
	}
	return buf.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
