package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	recordFormatVersionCurrent = 2
	recordFormatVersionV1      = 1
)

// ErrCorruptRecord is returned when stored bytes cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

// Codec converts records to and from their stored form.
type Codec interface {
	Encode(Record) ([]byte, error)
	Decode([]byte) (Record, error)
}

// Signer protects encoded bytes against tampering. jwt.Manager satisfies it.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Verify(token []byte) ([]byte, error)
}

// recordV1 is the layout written before roles were tracked. It carried the
// user record flat, with no wrapper.
type recordV1 struct {
	User
	SavedAt int64 `json:"saved_at"`
}

// Encode writes the current format version followed by the JSON record.
func Encode(r Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordFormatVersionCurrent)
	if err := json.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode reads any known format version, migrating older layouts forward.
func Decode(data []byte) (Record, error) {
	if len(data) < 2 {
		return Record{}, ErrCorruptRecord
	}

	switch data[0] {
	case recordFormatVersionCurrent:
		var r Record
		if err := json.Unmarshal(data[1:], &r); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		return r, nil
	case recordFormatVersionV1:
		var legacy recordV1
		if err := json.Unmarshal(data[1:], &legacy); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		return Record{
			User:      legacy.User,
			Role:      RoleFor(legacy.User),
			CreatedAt: legacy.SavedAt,
			UpdatedAt: legacy.SavedAt,
		}, nil
	default:
		return Record{}, fmt.Errorf("%w: unsupported session schema version %d", ErrCorruptRecord, data[0])
	}
}

// RoleFor derives the role name stored with a record.
func RoleFor(u User) string {
	if u.EsAdminLocal {
		return "admin_local"
	}
	return "publicador"
}

// PlainCodec uses Encode and Decode directly.
type PlainCodec struct{}

func (PlainCodec) Encode(r Record) ([]byte, error) { return Encode(r) }

func (PlainCodec) Decode(data []byte) (Record, error) { return Decode(data) }

// SignedCodec signs the encoded record so a modified copy fails to load.
type SignedCodec struct {
	Signer Signer
}

func (c SignedCodec) Encode(r Record) ([]byte, error) {
	if c.Signer == nil {
		return nil, errors.New("session: signed codec without signer")
	}
	raw, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return c.Signer.Sign(raw)
}

func (c SignedCodec) Decode(data []byte) (Record, error) {
	if c.Signer == nil {
		return Record{}, errors.New("session: signed codec without signer")
	}
	raw, err := c.Signer.Verify(data)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return Decode(raw)
}
