package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pinRecordVersionV1 = 1
)

var (
	ErrPinNotFound         = errors.New("pin record not found")
	ErrPinMismatch         = errors.New("pin mismatch")
	ErrPinAttemptsExceeded = errors.New("pin attempts exceeded")
	ErrPinRedisUnavailable = errors.New("pin redis unavailable")
)

// PinRecord is the single active PIN challenge.
type PinRecord struct {
	Email     string
	Hash      [32]byte
	ExpiresAt int64
	Attempts  uint16
}

// PinStore keeps the active PIN challenge in one Redis key. Saving a new
// record replaces the previous one.
type PinStore struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
	now         func() time.Time
}

// NewPinStore returns a PinStore. maxAttempts <= 0 allows unlimited wrong
// guesses until the record expires.
func NewPinStore(redisClient redis.UniversalClient, prefix string, maxAttempts int) *PinStore {
	if prefix == "" {
		prefix = "cuenta:dev:pin"
	}
	return &PinStore{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (s *PinStore) key() string {
	return s.prefix + ":active"
}

// Save stores record with the given lifetime.
func (s *PinStore) Save(ctx context.Context, record *PinRecord, ttl time.Duration) error {
	if record.ExpiresAt == 0 {
		record.ExpiresAt = s.now().Add(ttl).Unix()
	}
	encoded, err := encodePinRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPinRedisUnavailable, err)
	}
	return nil
}

// Consume deletes the record and returns it when providedHash matches. A
// mismatch counts one attempt and keeps the record alive.
func (s *PinStore) Consume(ctx context.Context, providedHash [32]byte) (*PinRecord, error) {
	const maxRetries = 4
	key := s.key()

	for i := 0; i < maxRetries; i++ {
		var matched *PinRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePinRecord(data)
			if err != nil {
				return err
			}

			if s.now().Unix() > record.ExpiresAt {
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				}); err != nil {
					return err
				}
				return ErrPinNotFound
			}

			if subtle.ConstantTimeCompare(record.Hash[:], providedHash[:]) != 1 {
				record.Attempts++
				if s.maxAttempts > 0 && int(record.Attempts) >= s.maxAttempts {
					if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					}); err != nil {
						return err
					}
					return ErrPinAttemptsExceeded
				}

				ttl := time.Unix(record.ExpiresAt, 0).Sub(s.now())
				if ttl <= 0 {
					return ErrPinNotFound
				}
				updated, err := encodePinRecord(record)
				if err != nil {
					return err
				}
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				}); err != nil {
					return err
				}
				return ErrPinMismatch
			}

			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			}); err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrPinNotFound
			case errors.Is(err, ErrPinNotFound), errors.Is(err, ErrPinMismatch), errors.Is(err, ErrPinAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrPinRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrPinNotFound
}

func encodePinRecord(record *PinRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(pinRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if len(record.Email) > 65535 {
		return nil, errors.New("pin record email too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)
	buf.Write(record.Hash[:])

	return buf.Bytes(), nil
}

func decodePinRecord(data []byte) (*PinRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pinRecordVersionV1 {
		return nil, errors.New("invalid pin record version")
	}

	record := &PinRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.Hash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
