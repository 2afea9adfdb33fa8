package filetransfer

import (
	"context"
	"testing"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	if err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestBackendKeyPrefixing(t *testing.T) {
	b := &Backend{bucket: "b", prefix: "devices/dev-1"}
	if got, want := b.key("sample.bin"), "devices/dev-1/sample.bin"; got != want {
		t.Fatalf("key() = %q, want %q", got, want)
	}

	bare := &Backend{bucket: "b"}
	if got, want := bare.key("sample.bin"), "sample.bin"; got != want {
		t.Fatalf("key() with no prefix = %q, want %q", got, want)
	}
}
