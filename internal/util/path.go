package util

import (
	"path"
	"strings"
)

// BucketPath maps a dotted bucket name to path segments ("my.bucket" -> "my/bucket").
func BucketPath(bucket string) string {
	return strings.ReplaceAll(bucket, ".", "/")
}

// ObjectLocation joins location, bucket and object with "/" without any
// escaping or cleaning.
func ObjectLocation(location, bucket, object string) string {
	return location + "/" + BucketPath(bucket) + "/" + object
}

// SplitBucketPath returns the first segment of a dotted bucket name as the
// bucket and the remaining segments joined as a key prefix.
func SplitBucketPath(bucket string) (string, string) {
	head, rest, _ := strings.Cut(BucketPath(bucket), "/")
	return head, rest
}

// BuildObjectKey joins a key prefix and an object name.
func BuildObjectKey(prefix, object string) string {
	if prefix == "" {
		return object
	}
	return path.Join(strings.Trim(prefix, "/"), object)
}
