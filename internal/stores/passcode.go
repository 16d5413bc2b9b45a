package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	passcodeRecordVersionV1 = 1

	consumeMaxRetries = 4
	consumeRetryDelay = 5 * time.Millisecond

	// retiredMaxEntries bounds the superseded codes remembered per subject.
	retiredMaxEntries = 8
	retiredEntrySize  = 16 + 32
)

var (
	ErrPasscodeNotFound          = errors.New("passcode record not found")
	ErrPasscodeStoreUnavailable  = errors.New("passcode store unavailable")
	ErrPasscodeContention        = errors.New("passcode record contention")
	errPasscodeRecordUnsupported = errors.New("invalid passcode record version")
)

// ConsumeOutcome classifies a Consume call that reached the store.
type ConsumeOutcome int

const (
	ConsumeVerified ConsumeOutcome = iota
	ConsumeNotFound
	ConsumeExpired
	ConsumeMismatch
	ConsumeAttemptsExceeded
)

// PasscodeRecord is the persisted form of an outstanding passcode. It never
// carries the plaintext code, only a salted keyed hash of it.
type PasscodeRecord struct {
	Subject   string
	Salt      [16]byte
	Hash      [32]byte
	CreatedAt int64 // unix nanoseconds
	Attempts  uint16
}

// PasscodeStore persists one active passcode record per subject key.
//
// Records that leave the active slot (superseded, expired, verified, locked
// out or invalidated) are remembered as salt and hash pairs in a short list
// next to the active key, so a late submission of a retired code can be told
// apart from a wrong guess against the current one.
type PasscodeStore struct {
	redis      redis.UniversalClient
	prefix     string
	retiredTTL time.Duration
}

// NewPasscodeStore returns a store keyed under prefix. retiredTTL bounds how
// long retired codes are remembered; zero disables the retired list.
func NewPasscodeStore(redisClient redis.UniversalClient, prefix string, retiredTTL time.Duration) *PasscodeStore {
	if prefix == "" {
		prefix = "cgp"
	}
	return &PasscodeStore{
		redis:      redisClient,
		prefix:     prefix,
		retiredTTL: retiredTTL,
	}
}

// Both keys of a subject share one hash tag so they stay in a single
// cluster slot for WATCH/MULTI.
func (s *PasscodeStore) key(subject string) string {
	return s.prefix + ":{" + subject + "}"
}

func (s *PasscodeStore) retiredKey(subject string) string {
	return s.key(subject) + ":retired"
}

// Save writes record for its subject. An existing record is replaced and
// retired in the same transaction. retention is the native Redis TTL.
func (s *PasscodeStore) Save(ctx context.Context, record *PasscodeRecord, retention time.Duration) error {
	encoded, err := encodePasscodeRecord(record)
	if err != nil {
		return err
	}

	key, retiredKey := s.key(record.Subject), s.retiredKey(record.Subject)
	err = s.optimistic(ctx, func(tx *redis.Tx) error {
		previous, _, err := s.readInTx(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, retention)
			s.retire(ctx, pipe, retiredKey, previous)
			return nil
		})
		return err
	}, key, retiredKey)
	return s.storeErr(err)
}

// Get returns the stored record without modifying it.
func (s *PasscodeStore) Get(ctx context.Context, subject string) (*PasscodeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPasscodeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPasscodeStoreUnavailable, err)
	}
	return decodePasscodeRecord(data)
}

// Delete removes and retires the record for subject. It reports whether a
// record existed.
func (s *PasscodeStore) Delete(ctx context.Context, subject string) (bool, error) {
	key, retiredKey := s.key(subject), s.retiredKey(subject)

	var existed bool
	err := s.optimistic(ctx, func(tx *redis.Tx) error {
		previous, present, err := s.readInTx(ctx, tx, key)
		if err != nil {
			return err
		}
		existed = present
		if !existed {
			return nil
		}
		return s.deleteInTx(ctx, tx, key, retiredKey, previous)
	}, key, retiredKey)
	if err != nil {
		return false, s.storeErr(err)
	}
	return existed, nil
}

// Retired returns the remembered salt and hash pairs for subject, newest
// first, as records carrying only Subject, Salt and Hash.
func (s *PasscodeStore) Retired(ctx context.Context, subject string) ([]*PasscodeRecord, error) {
	entries, err := s.redis.LRange(ctx, s.retiredKey(subject), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasscodeStoreUnavailable, err)
	}
	return decodeRetired(subject, entries), nil
}

// Consume runs the read-verify-delete cycle for subject as one optimistic
// transaction. A record older than ttl (relative to now) is deleted and
// reported as expired. On a match the record is deleted. A candidate that
// matches a retired code is reported as ConsumeNotFound and leaves the active
// record untouched. On any other mismatch the attempt counter is persisted,
// unless it reaches maxAttempts, in which case the record is deleted.
// maxAttempts <= 0 disables the cap. Deleted records are retired.
func (s *PasscodeStore) Consume(
	ctx context.Context,
	subject string,
	now time.Time,
	ttl time.Duration,
	maxAttempts int,
	matches func(*PasscodeRecord) bool,
) (ConsumeOutcome, error) {
	key, retiredKey := s.key(subject), s.retiredKey(subject)

	var outcome ConsumeOutcome
	err := s.optimistic(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			outcome = ConsumeNotFound
			return nil
		}
		if err != nil {
			return err
		}

		record, decErr := decodePasscodeRecord(data)
		if decErr != nil {
			outcome = ConsumeNotFound
			return s.deleteInTx(ctx, tx, key, retiredKey, nil)
		}

		if now.Sub(time.Unix(0, record.CreatedAt)) > ttl {
			outcome = ConsumeExpired
			return s.deleteInTx(ctx, tx, key, retiredKey, record)
		}

		if matches(record) {
			outcome = ConsumeVerified
			return s.deleteInTx(ctx, tx, key, retiredKey, record)
		}

		if s.retiredTTL > 0 {
			entries, err := tx.LRange(ctx, retiredKey, 0, -1).Result()
			if err != nil {
				return err
			}
			for _, retired := range decodeRetired(subject, entries) {
				if matches(retired) {
					outcome = ConsumeNotFound
					return nil
				}
			}
		}

		record.Attempts++
		if maxAttempts > 0 && int(record.Attempts) >= maxAttempts {
			outcome = ConsumeAttemptsExceeded
			return s.deleteInTx(ctx, tx, key, retiredKey, record)
		}

		pttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		encoded, err := encodePasscodeRecord(record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if pttl > 0 {
				pipe.Set(ctx, key, encoded, pttl)
			} else {
				pipe.Set(ctx, key, encoded, redis.KeepTTL)
			}
			return nil
		})
		outcome = ConsumeMismatch
		return err
	}, key, retiredKey)
	if err != nil {
		return 0, s.storeErr(err)
	}

	return outcome, nil
}

// optimistic runs fn under WATCH on keys, retrying a bounded number of times
// when another client wins the transaction.
func (s *PasscodeStore) optimistic(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	backoff := retry.WithMaxRetries(consumeMaxRetries, retry.NewConstant(consumeRetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.redis.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *PasscodeStore) storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrPasscodeContention
	default:
		return fmt.Errorf("%w: %v", ErrPasscodeStoreUnavailable, err)
	}
}

// readInTx returns the watched record at key and whether the key existed.
// An unreadable record is reported as present with a nil record.
func (s *PasscodeStore) readInTx(ctx context.Context, tx *redis.Tx, key string) (*PasscodeRecord, bool, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	record, decErr := decodePasscodeRecord(data)
	if decErr != nil {
		return nil, true, nil
	}
	return record, true, nil
}

func (s *PasscodeStore) deleteInTx(ctx context.Context, tx *redis.Tx, key, retiredKey string, record *PasscodeRecord) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		s.retire(ctx, pipe, retiredKey, record)
		return nil
	})
	return err
}

// retire queues record onto the retired list. A nil record or a zero
// retiredTTL queues nothing.
func (s *PasscodeStore) retire(ctx context.Context, pipe redis.Pipeliner, retiredKey string, record *PasscodeRecord) {
	if record == nil || s.retiredTTL <= 0 {
		return
	}
	entry := make([]byte, 0, retiredEntrySize)
	entry = append(entry, record.Salt[:]...)
	entry = append(entry, record.Hash[:]...)

	pipe.LPush(ctx, retiredKey, entry)
	pipe.LTrim(ctx, retiredKey, 0, retiredMaxEntries-1)
	pipe.PExpire(ctx, retiredKey, s.retiredTTL)
}

func decodeRetired(subject string, entries []string) []*PasscodeRecord {
	out := make([]*PasscodeRecord, 0, len(entries))
	for _, entry := range entries {
		if len(entry) != retiredEntrySize {
			continue
		}
		record := &PasscodeRecord{Subject: subject}
		copy(record.Salt[:], entry[:16])
		copy(record.Hash[:], entry[16:])
		out = append(out, record)
	}
	return out
}

func encodePasscodeRecord(record *PasscodeRecord) ([]byte, error) {
	if record == nil {
		return nil, errors.New("nil passcode record")
	}
	if record.Subject == "" {
		return nil, errors.New("passcode record subject is empty")
	}
	if len(record.Subject) > 65535 {
		return nil, errors.New("passcode record subject too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(passcodeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Subject))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Subject)
	buf.Write(record.Salt[:])
	buf.Write(record.Hash[:])

	return buf.Bytes(), nil
}

func decodePasscodeRecord(data []byte) (*PasscodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != passcodeRecordVersionV1 {
		return nil, errPasscodeRecordUnsupported
	}

	record := &PasscodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}

	var subjectLen uint16
	if err := binary.Read(reader, binary.BigEndian, &subjectLen); err != nil {
		return nil, err
	}
	subject := make([]byte, subjectLen)
	if _, err := io.ReadFull(reader, subject); err != nil {
		return nil, err
	}
	record.Subject = string(subject)

	if _, err := io.ReadFull(reader, record.Salt[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.Hash[:]); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in passcode record")
	}

	return record, nil
}
