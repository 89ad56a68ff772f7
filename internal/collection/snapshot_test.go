package collection

import (
	"bytes"
	"context"
	"testing"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/storage"
)

func TestPortableSnapshotRoundTrips(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	col := mustLoad(t, m, testSchema("articles"))

	docs := []document.Document{
		{ID: "1", Fields: map[string]document.Value{
			"title":  document.Text("the quick brown fox"),
			"body":   document.Text("jumps"),
			"vector": document.Bytes(encodeFloat32LE([]float32{1, 2, 3, 4})),
		}},
	}
	if _, err := m.Index(ctx, "articles", docs); err != nil {
		t.Fatalf("Index: %v", err)
	}

	var buf bytes.Buffer
	if err := exportPortable(col, &buf); err != nil {
		t.Fatalf("exportPortable: %v", err)
	}

	cs, gotDocs, vectors, err := importPortable(bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("importPortable: %v", err)
	}
	if cs.Collection != "articles" {
		t.Fatalf("unexpected collection name: %q", cs.Collection)
	}
	if len(gotDocs) != 1 || gotDocs[0].ID != "1" {
		t.Fatalf("unexpected documents: %+v", gotDocs)
	}
	if title, _ := gotDocs[0].Fields["title"].AsString(); title != "the quick brown fox" {
		t.Fatalf("unexpected title: %q", title)
	}
	vec, ok := vectors["1"]
	if !ok || len(vec) != 4 || vec[0] != 1 || vec[3] != 4 {
		t.Fatalf("unexpected vector: %v ok=%v", vec, ok)
	}
}

func TestPortableSnapshotRenamesOnImport(t *testing.T) {
	m, _ := newTestManager(t)
	col := mustLoad(t, m, testSchema("articles"))

	var buf bytes.Buffer
	if err := exportPortable(col, &buf); err != nil {
		t.Fatalf("exportPortable: %v", err)
	}
	cs, _, _, err := importPortable(bytes.NewReader(buf.Bytes()), "articles-v2")
	if err != nil {
		t.Fatalf("importPortable: %v", err)
	}
	if cs.Collection != "articles-v2" {
		t.Fatalf("expected renamed collection, got %q", cs.Collection)
	}
}

func TestImportPortableRejectsUnknownFormat(t *testing.T) {
	bad := []byte(`{"format":"something-else"}` + "\n")
	if _, _, _, err := importPortable(bytes.NewReader(bad), ""); err == nil {
		t.Fatalf("expected an error for an unrecognized snapshot format")
	}
}

func TestArchiveSnapshotRoundTrips(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	col := mustLoad(t, m, testSchema("articles"))

	docs := []document.Document{
		{ID: "1", Fields: map[string]document.Value{"title": document.Text("hello"), "body": document.Text("world")}},
	}
	if _, err := m.Index(ctx, "articles", docs); err != nil {
		t.Fatalf("Index: %v", err)
	}

	var buf bytes.Buffer
	if err := exportArchive(ctx, store, col, &buf); err != nil {
		t.Fatalf("exportArchive: %v", err)
	}

	targetStore, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cs, err := importArchive(ctx, targetStore, bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("importArchive: %v", err)
	}
	if cs.Collection != "articles" {
		t.Fatalf("unexpected collection name: %q", cs.Collection)
	}
	objects, err := targetStore.List(ctx, "articles/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) == 0 {
		t.Fatalf("expected archive extraction to write backend objects")
	}
}

func TestEncryptSnapshotRoundTrips(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	plaintext := []byte("a portable or archive snapshot payload")

	blob, err := encryptSnapshot(plaintext, key)
	if err != nil {
		t.Fatalf("encryptSnapshot: %v", err)
	}
	if !bytes.HasPrefix(blob, []byte(encryptedMagic)) {
		t.Fatalf("expected encrypted envelope to start with magic %q", encryptedMagic)
	}

	got, err := decryptSnapshot(blob, key)
	if err != nil {
		t.Fatalf("decryptSnapshot: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted plaintext mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptSnapshotFailsOnWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 32)
	wrongKey := bytes.Repeat([]byte{0x02}, 32)

	blob, err := encryptSnapshot([]byte("secret"), key)
	if err != nil {
		t.Fatalf("encryptSnapshot: %v", err)
	}
	if _, err := decryptSnapshot(blob, wrongKey); err == nil {
		t.Fatalf("expected decryption with the wrong key to fail")
	}
}

func TestDecryptSnapshotFailsOnTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 32)
	blob, err := encryptSnapshot([]byte("secret payload"), key)
	if err != nil {
		t.Fatalf("encryptSnapshot: %v", err)
	}
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := decryptSnapshot(tampered, key); err == nil {
		t.Fatalf("expected decryption of tampered ciphertext to fail")
	}
}

func TestEncryptSnapshotRejectsBadKeyLength(t *testing.T) {
	if _, err := encryptSnapshot([]byte("x"), []byte("too-short")); err == nil {
		t.Fatalf("expected an error for a non-32-byte key")
	}
}
