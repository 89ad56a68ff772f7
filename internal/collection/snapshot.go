package collection

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
	"github.com/prism-search/prism/internal/schema"
	"github.com/prism-search/prism/internal/storage"
)

// SnapshotFormat selects one of the two snapshot payload representations
// a collection can be exported to and attached back from (spec.md §6).
// Either payload can additionally be wrapped in the encrypted envelope
// (encryptSnapshot) when an export key is set.
type SnapshotFormat string

const (
	FormatPortable SnapshotFormat = "portable"
	FormatArchive  SnapshotFormat = "archive"
)

// portableFormatID is the magic string stamped on line 1 of every portable
// snapshot; a reader rejects anything else outright.
const portableFormatID = "prism-portable-v1"

// portableHeader is line 1 of a portable snapshot: the collection's schema
// (base64-encoded YAML, so the line stays pure JSON) plus free-form
// metadata a caller can round-trip (export time, source node, etc).
type portableHeader struct {
	Format    string            `json:"format"`
	Metadata  map[string]string `json:"metadata"`
	SchemaB64 string            `json:"schema_b64"`
}

// portableDocLine is one document line following the header: its stored
// fields and, if the collection has a vector backend, its vector.
type portableDocLine struct {
	ID     string               `json:"id"`
	Fields map[string]valueJSON `json:"fields"`
	Vector []float32            `json:"vector,omitempty"`
}

// valueJSON is document.Value's JSON wire shape. []byte blobs marshal as
// base64 automatically via encoding/json; everything else is a plain
// scalar keyed by kind.
type valueJSON struct {
	Kind string     `json:"kind"`
	Str  string     `json:"str,omitempty"`
	I64  int64      `json:"i64,omitempty"`
	U64  uint64     `json:"u64,omitempty"`
	F64  float64    `json:"f64,omitempty"`
	Bool bool       `json:"bool,omitempty"`
	Time *time.Time `json:"time,omitempty"`
	Blob []byte     `json:"blob,omitempty"`
}

func encodeValue(v document.Value) valueJSON {
	vj := valueJSON{Kind: string(v.Kind)}
	switch v.Kind {
	case document.KindString, document.KindText:
		vj.Str = v.Str
	case document.KindI64:
		vj.I64 = v.I64
	case document.KindU64:
		vj.U64 = v.U64
	case document.KindF64:
		vj.F64 = v.F64
	case document.KindBool:
		vj.Bool = v.Bool
	case document.KindTimestamp:
		t := v.Time
		vj.Time = &t
	case document.KindBytes:
		vj.Blob = v.Blob
	}
	return vj
}

func decodeValue(vj valueJSON) document.Value {
	switch document.ValueKind(vj.Kind) {
	case document.KindString:
		return document.String(vj.Str)
	case document.KindText:
		return document.Text(vj.Str)
	case document.KindI64:
		return document.I64(vj.I64)
	case document.KindU64:
		return document.U64(vj.U64)
	case document.KindF64:
		return document.F64(vj.F64)
	case document.KindBool:
		return document.Bool(vj.Bool)
	case document.KindTimestamp:
		if vj.Time != nil {
			return document.Timestamp(*vj.Time)
		}
		return document.Timestamp(time.Time{})
	case document.KindBytes:
		return document.Bytes(vj.Blob)
	default:
		return document.Value{}
	}
}

// exportPortable writes col's live documents as newline-delimited JSON: a
// header line naming the schema, then one line per document (spec.md §6).
func exportPortable(col *Collection, w io.Writer) error {
	schemaYAML, err := yaml.Marshal(col.Schema)
	if err != nil {
		return perr.Backend("collection.schema_encode", err)
	}
	header := portableHeader{
		Format:    portableFormatID,
		Metadata:  map[string]string{"collection": col.Name},
		SchemaB64: base64.StdEncoding.EncodeToString(schemaYAML),
	}
	bw := bufio.NewWriter(w)
	if err := writeJSONLine(bw, header); err != nil {
		return err
	}

	for _, doc := range liveDocuments(col.backends) {
		line := portableDocLine{ID: doc.ID, Fields: make(map[string]valueJSON, len(doc.Fields))}
		for k, v := range doc.Fields {
			line.Fields[k] = encodeValue(v)
		}
		if ix := col.backends.vectorShardFor(doc.ID); ix != nil {
			if vec, ok := ix.Vector(doc.ID); ok {
				line.Vector = vec
			}
		}
		if err := writeJSONLine(bw, line); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return perr.IO("collection.snapshot_write", err)
	}
	return nil
}

func writeJSONLine(w io.Writer, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return perr.Backend("collection.snapshot_encode", err)
	}
	if _, err := w.Write(blob); err != nil {
		return perr.IO("collection.snapshot_write", err)
	}
	_, err = w.Write([]byte("\n"))
	if err != nil {
		return perr.IO("collection.snapshot_write", err)
	}
	return nil
}

// importPortable parses a portable snapshot, returning its schema (with
// Collection renamed to targetName when targetName is non-empty) and its
// documents plus any attached vectors.
func importPortable(r io.Reader, targetName string) (*schema.CollectionSchema, []document.Document, map[string][]float32, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, nil, nil, perr.Input("collection.snapshot_empty", "portable snapshot has no header line")
	}
	var header portableHeader
	if err := json.Unmarshal(sc.Bytes(), &header); err != nil {
		return nil, nil, nil, perr.Input("collection.snapshot_bad_header", err.Error())
	}
	if header.Format != portableFormatID {
		return nil, nil, nil, perr.Input("collection.snapshot_bad_format", fmt.Sprintf("unrecognized snapshot format %q", header.Format))
	}
	schemaYAML, err := base64.StdEncoding.DecodeString(header.SchemaB64)
	if err != nil {
		return nil, nil, nil, perr.Input("collection.snapshot_bad_schema", err.Error())
	}
	var cs schema.CollectionSchema
	if err := yaml.Unmarshal(schemaYAML, &cs); err != nil {
		return nil, nil, nil, perr.Input("collection.snapshot_bad_schema", err.Error())
	}
	if targetName != "" {
		cs.Collection = targetName
	}

	var docs []document.Document
	vectors := make(map[string][]float32)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var line portableDocLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return nil, nil, nil, perr.Input("collection.snapshot_bad_line", err.Error())
		}
		fields := make(map[string]document.Value, len(line.Fields))
		for k, v := range line.Fields {
			fields[k] = decodeValue(v)
		}
		docs = append(docs, document.Document{ID: line.ID, Fields: fields})
		if len(line.Vector) > 0 {
			vectors[line.ID] = line.Vector
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, nil, perr.IO("collection.snapshot_read", err)
	}
	return &cs, docs, vectors, nil
}

// exportArchive packages col's schema plus every raw segment object its
// backends have written to storage into a zstd-compressed tar stream
// (spec.md §6). Unlike the portable format, this is a byte-for-byte
// snapshot of the backend state, not a re-derivable document list.
func exportArchive(ctx context.Context, store storage.Store, col *Collection, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return perr.Backend("collection.archive_zstd_init", err)
	}
	tw := tar.NewWriter(zw)

	schemaYAML, err := yaml.Marshal(col.Schema)
	if err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return perr.Backend("collection.schema_encode", err)
	}
	metadata, err := json.Marshal(map[string]string{"collection": col.Name})
	if err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return perr.Backend("collection.metadata_encode", err)
	}
	if err := writeTarFile(tw, "metadata.json", metadata); err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return err
	}
	if err := writeTarFile(tw, "schema.yaml", schemaYAML); err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return err
	}

	prefix := col.Name + "/"
	objects, err := store.List(ctx, prefix)
	if err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return err
	}
	for _, obj := range objects {
		blob, err := store.Read(ctx, obj.Path)
		if err != nil {
			_ = tw.Close()
			_ = zw.Close()
			return err
		}
		name := strings.TrimPrefix(obj.Path, prefix)
		if err := writeTarFile(tw, "backends/"+name, blob); err != nil {
			_ = tw.Close()
			_ = zw.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return perr.IO("collection.archive_write", err)
	}
	if err := zw.Close(); err != nil {
		return perr.IO("collection.archive_write", err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		return perr.IO("collection.archive_write", err)
	}
	if _, err := tw.Write(data); err != nil {
		return perr.IO("collection.archive_write", err)
	}
	return nil
}

// importArchive extracts a zstd/tar archive into store under targetName,
// returning the schema it carried (renamed to targetName when non-empty).
func importArchive(ctx context.Context, store storage.Store, r io.Reader, targetName string) (*schema.CollectionSchema, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, perr.Input("collection.archive_zstd_init", err.Error())
	}
	defer zr.Close()
	tr := tar.NewReader(zr)

	var cs schema.CollectionSchema
	haveSchema := false

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.Input("collection.archive_read", err.Error())
		}
		blob, err := io.ReadAll(tr)
		if err != nil {
			return nil, perr.Input("collection.archive_read", err.Error())
		}
		switch {
		case hdr.Name == "schema.yaml":
			if err := yaml.Unmarshal(blob, &cs); err != nil {
				return nil, perr.Input("collection.archive_bad_schema", err.Error())
			}
			haveSchema = true
		case hdr.Name == "metadata.json":
			// informational only; nothing to apply
		case strings.HasPrefix(hdr.Name, "backends/"):
			name := strings.TrimPrefix(hdr.Name, "backends/")
			dest := targetCollectionName(targetName, cs.Collection) + "/" + name
			if err := store.Write(ctx, dest, blob); err != nil {
				return nil, err
			}
		}
	}
	if !haveSchema {
		return nil, perr.Input("collection.archive_missing_schema", "archive snapshot has no schema.yaml entry")
	}
	if targetName != "" {
		cs.Collection = targetName
	}
	return &cs, nil
}

func targetCollectionName(targetName, schemaName string) string {
	if targetName != "" {
		return targetName
	}
	return schemaName
}

// --- encrypted wrapper (spec.md §8) ---

const (
	encryptedMagic   = "PENC"
	encryptedVersion = byte(0x01)
	encryptedKeyLen  = 32
	encryptedNonceLen = 12
)

// encryptSnapshot wraps plaintext (a portable or archive snapshot) in an
// AES-256-GCM envelope: 4-byte magic, 1-byte version, a random 12-byte
// nonce, then the ciphertext with its 16-byte GCM authentication tag
// appended. key must be exactly 32 bytes.
func encryptSnapshot(plaintext, key []byte) ([]byte, error) {
	if len(key) != encryptedKeyLen {
		return nil, perr.Input("collection.snapshot_bad_key", fmt.Sprintf("encryption key must be %d bytes, got %d", encryptedKeyLen, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, perr.Backend("collection.snapshot_cipher_init", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, perr.Backend("collection.snapshot_cipher_init", err)
	}
	nonce := make([]byte, encryptedNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, perr.Backend("collection.snapshot_nonce", err)
	}

	var out bytes.Buffer
	out.WriteString(encryptedMagic)
	out.WriteByte(encryptedVersion)
	out.Write(nonce)
	out.Write(gcm.Seal(nil, nonce, plaintext, nil))
	return out.Bytes(), nil
}

// decryptSnapshot reverses encryptSnapshot. A wrong key or any tampering
// with the envelope fails GCM tag verification and returns an error; there
// is no partial/best-effort decryption.
func decryptSnapshot(blob, key []byte) ([]byte, error) {
	if len(key) != encryptedKeyLen {
		return nil, perr.Input("collection.snapshot_bad_key", fmt.Sprintf("decryption key must be %d bytes, got %d", encryptedKeyLen, len(key)))
	}
	minLen := len(encryptedMagic) + 1 + encryptedNonceLen
	if len(blob) < minLen || string(blob[:len(encryptedMagic)]) != encryptedMagic {
		return nil, perr.Input("collection.snapshot_bad_envelope", "not a recognized encrypted snapshot")
	}
	version := blob[len(encryptedMagic)]
	if version != encryptedVersion {
		return nil, perr.Input("collection.snapshot_bad_version", fmt.Sprintf("unsupported encrypted snapshot version %d", version))
	}
	offset := len(encryptedMagic) + 1
	nonce := blob[offset : offset+encryptedNonceLen]
	ciphertext := blob[offset+encryptedNonceLen:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, perr.Backend("collection.snapshot_cipher_init", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, perr.Backend("collection.snapshot_cipher_init", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, perr.Input("collection.snapshot_decrypt_failed", "authentication failed: wrong key or corrupted snapshot")
	}
	return plaintext, nil
}
