package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

type xorSigner struct{ key byte }

func (s xorSigner) Sign(payload []byte) ([]byte, error) {
	out := make([]byte, 0, len(payload)+1)
	var sum byte
	for _, b := range payload {
		sum ^= b
	}
	out = append(out, payload...)
	return append(out, sum^s.key), nil
}

func (s xorSigner) Verify(token []byte) ([]byte, error) {
	if len(token) == 0 {
		return nil, errors.New("empty token")
	}
	payload := token[:len(token)-1]
	var sum byte
	for _, b := range payload {
		sum ^= b
	}
	if sum^s.key != token[len(token)-1] {
		return nil, errors.New("bad signature")
	}
	return payload, nil
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99, '{', '}'})
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord for empty input, got %v", err)
	}
}

func TestDecodeMigratesV1(t *testing.T) {
	legacy := recordV1{User: User{ID: "u-9", PersonaID: 9, EsAdminLocal: true, Username: "admin"}, SavedAt: 1700000000}
	body, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("marshal legacy: %v", err)
	}
	rec, err := Decode(append([]byte{recordFormatVersionV1}, body...))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rec.Role != "admin_local" || rec.User.Username != "admin" || rec.CreatedAt != 1700000000 {
		t.Fatalf("unexpected migrated record: %+v", rec)
	}
}

func TestEncodeDecodeCurrent(t *testing.T) {
	rec := testRecord()
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if data[0] != recordFormatVersionCurrent {
		t.Fatalf("unexpected version byte %d", data[0])
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != rec {
		t.Fatalf("record changed in transit: %+v", got)
	}
}

func TestSignedCodecRejectsTampering(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sesion.tok")
	codec := SignedCodec{Signer: xorSigner{key: 0x5a}}
	store := NewFileStore(path, codec)
	if err := store.Save(ctx, testRecord()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	data, err := codec.Encode(testRecord())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	tampered := bytes.Replace(data, []byte("publicador"), []byte("admin_loca"), 1)
	if _, err := codec.Decode(tampered); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected tampered record to be rejected, got %v", err)
	}
}
