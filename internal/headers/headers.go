// Package headers builds the integrity and timestamp headers attached to every
// object request.
package headers

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/rowjay/simple-minio-client/internal/auth"
)

const (
	ContentMD5    = "Content-MD5"
	ContentSHA256 = "x-amz-content-sha256"
	AmzDate       = "x-amz-date"
	UserAgent     = "User-Agent"
	Connection    = "Connection"

	AmzDateFormat    = "20060102T150405Z"
	DefaultUserAgent = "MinIO (Linux; amd64) smc/dev"
)

type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list. Names are kept exactly as written.
type Headers []Header

// Get returns the value of the first header whose name matches exactly.
func (h Headers) Get(name string) (string, bool) {
	for _, hdr := range h {
		if hdr.Name == name {
			return hdr.Value, true
		}
	}
	return "", false
}

// Apply stores every header into dst without canonicalising the name.
func (h Headers) Apply(dst http.Header) {
	for _, hdr := range h {
		dst[hdr.Name] = []string{hdr.Value}
	}
}

// Builder produces a fresh header list per request.
type Builder struct {
	UserAgent       string
	ConnectionClose bool
	Now             func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{UserAgent: DefaultUserAgent, Now: time.Now}
}

// Build returns the headers for a request. A nil body means the request has no
// body; a non-nil empty slice is an empty body. A nil creds means anonymous.
//
// With credentials both hashes are computed over the body (or an empty
// payload). Without credentials only Content-MD5 is emitted, and only when a
// body is present.
func (b *Builder) Build(body []byte, creds *auth.Credentials) Headers {
	var md5Hash, sha256Hash string
	switch {
	case creds != nil:
		data := body
		if data == nil {
			data = []byte{}
		}
		sha256Hash = SHA256Hex(data)
		md5Hash = MD5Base64(data)
	case body != nil:
		md5Hash = MD5Base64(body)
	}

	out := make(Headers, 0, 5)
	if md5Hash != "" {
		out = append(out, Header{Name: ContentMD5, Value: md5Hash})
	}
	if sha256Hash != "" {
		out = append(out, Header{Name: ContentSHA256, Value: sha256Hash})
	}
	out = append(out, Header{Name: AmzDate, Value: b.now().UTC().Format(AmzDateFormat)})
	out = append(out, Header{Name: UserAgent, Value: b.userAgent()})
	if b.ConnectionClose {
		out = append(out, Header{Name: Connection, Value: "close"})
	}
	return out
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Builder) userAgent() string {
	if b.UserAgent == "" {
		return DefaultUserAgent
	}
	return b.UserAgent
}

// MD5Base64 returns base64(MD5(data)).
func MD5Base64(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SHA256Hex returns lowercase hex(SHA256(data)).
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
