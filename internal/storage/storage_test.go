package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestCoarseType(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", TypeImage},
		{"image/jpeg", TypeImage},
		{"video/mp4", TypeVideo},
		{"audio/mpeg", TypeAudio},
		{"application/pdf", TypeDocument},
		{"text/plain; charset=utf-8", TypeDocument},
	}
	for _, tt := range tests {
		if got := CoarseType(tt.mime); got != tt.want {
			t.Errorf("CoarseType(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestDiskStore_PutAndOpen(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	pngBytes := []byte("\x89PNG\r\n\x1a\n0000000000")
	key, coarseType, err := store.Put(ctx, "bike.PNG", bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if coarseType != TypeImage {
		t.Errorf("coarse type = %q, want %q", coarseType, TypeImage)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("key %q should keep a lowercased extension", key)
	}

	r, err := store.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	stored, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stored, pngBytes) {
		t.Error("stored bytes differ from the upload")
	}
}

func TestDiskStore_KeysAreUnique(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	k1, _, err := store.Put(ctx, "a.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	k2, _, err := store.Put(ctx, "a.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Error("same filename must not collide on the same key")
	}
}

func TestDiskStore_PlainTextIsDocument(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, coarseType, err := store.Put(context.Background(), "note.txt", strings.NewReader("just words"))
	if err != nil {
		t.Fatal(err)
	}
	if coarseType != TypeDocument {
		t.Errorf("coarse type = %q, want %q", coarseType, TypeDocument)
	}
}
