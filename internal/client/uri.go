package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rowjay/simple-minio-client/internal/util"
)

// Characters rejected by strict URI parsers but tolerated by net/url.
const illegalURIChars = " \"<>\\^`{|}"

// ObjectURI builds location/bucket/object with dots in bucket turned into
// path separators. Nothing is escaped; characters that cannot appear in a URI
// yield ErrInvalidURI.
func ObjectURI(location, bucket, object string) (string, error) {
	raw := util.ObjectLocation(location, bucket, object)
	if i := strings.IndexAny(raw, illegalURIChars); i >= 0 {
		return "", fmt.Errorf("%w: illegal character %q at index %d in %q", ErrInvalidURI, raw[i], i, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: location %q is not an absolute URL", ErrInvalidURI, location)
	}
	return raw, nil
}
