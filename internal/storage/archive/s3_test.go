package archive

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Storage_KeyAndRelative(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "nav.csv", "nav.csv"},
		{"navsim", "nav.csv", "navsim/nav.csv"},
		{"navsim/", "runs/x/nav.csv", "navsim/runs/x/nav.csv"},
		{"/navsim/", "/nav.csv", "navsim/nav.csv"},
	}

	for _, tt := range tests {
		s, err := NewS3(S3Config{Bucket: "b", Region: "us-east-1", Prefix: tt.prefix})
		if err != nil {
			t.Fatalf("NewS3: %v", err)
		}
		got := s.key(tt.path)
		if got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
		if rel := s.relative(got); rel != trimSlash(tt.path) {
			t.Errorf("relative(%q) = %q, want %q", got, rel, trimSlash(tt.path))
		}
	}
}

func trimSlash(p string) string {
	if len(p) > 0 && p[0] == '/' {
		return p[1:]
	}
	return p
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(S3Config{Region: "us-east-1"}); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", fmt.Errorf("get: %w", &types.NoSuchKey{}), true},
		{"head not found", &types.NotFound{}, true},
		{"status code", errors.New("operation error S3: HeadObject, https response error StatusCode: 404"), true},
		{"access denied", errors.New("StatusCode: 403, AccessDenied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Errorf("isNotFound = %v, want %v", got, tt.want)
			}
		})
	}
}
