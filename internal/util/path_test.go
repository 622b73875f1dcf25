package util

import (
	"strings"
	"testing"
)

func TestBucketPath(t *testing.T) {
	cases := map[string]string{
		"bucket":    "bucket",
		"my.bucket": "my/bucket",
		"a.b.c.d":   "a/b/c/d",
		"":          "",
	}
	for in, want := range cases {
		if got := BucketPath(in); got != want {
			t.Fatalf("BucketPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBucketPathReplacesEveryDot(t *testing.T) {
	for _, bucket := range []string{"a", "a.b", "a..b", ".a.", "x.y.z.w.v"} {
		got := BucketPath(bucket)
		if strings.Contains(got, ".") {
			t.Fatalf("dot left in %q", got)
		}
		if strings.Count(got, "/") != strings.Count(bucket, ".")+strings.Count(bucket, "/") {
			t.Fatalf("separator count mismatch for %q: %q", bucket, got)
		}
	}
}

func TestObjectLocation(t *testing.T) {
	got := ObjectLocation("http://localhost:9000", "a.b", "k")
	if got != "http://localhost:9000/a/b/k" {
		t.Fatalf("unexpected location: %s", got)
	}
}

func TestSplitBucketPath(t *testing.T) {
	bucket, prefix := SplitBucketPath("a.b.c")
	if bucket != "a" || prefix != "b/c" {
		t.Fatalf("unexpected split: %q %q", bucket, prefix)
	}
	bucket, prefix = SplitBucketPath("single")
	if bucket != "single" || prefix != "" {
		t.Fatalf("unexpected split: %q %q", bucket, prefix)
	}
}

func TestBuildObjectKey(t *testing.T) {
	if key := BuildObjectKey("b/c/", "obj"); key != "b/c/obj" {
		t.Fatalf("unexpected key: %s", key)
	}
	if key := BuildObjectKey("", "obj"); key != "obj" {
		t.Fatalf("unexpected key: %s", key)
	}
}
