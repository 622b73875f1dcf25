package auth

import "strings"

// Credentials is an immutable access/secret key pair.
type Credentials struct {
	accessKey string
	secretKey string
}

// New returns credentials for the given key pair.
func New(accessKey, secretKey string) *Credentials {
	return &Credentials{accessKey: accessKey, secretKey: secretKey}
}

// FromKeys returns nil when no access key is given, so callers can pass the
// result straight into a client as "no credentials".
func FromKeys(accessKey, secretKey string) *Credentials {
	if strings.TrimSpace(accessKey) == "" {
		return nil
	}
	return New(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey))
}

func (c *Credentials) AccessKey() string {
	if c == nil {
		return ""
	}
	return c.accessKey
}

func (c *Credentials) SecretKey() string {
	if c == nil {
		return ""
	}
	return c.secretKey
}

// String hides the secret key.
func (c *Credentials) String() string {
	if c == nil {
		return "<none>"
	}
	return c.accessKey + ":****"
}
