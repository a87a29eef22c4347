package streams

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teranos/opsgate/errors"
)

// dataField is the stream entry field holding the JSON record
const dataField = "data"

// DefaultMaxLen is the approximate number of entries kept per stream
const DefaultMaxLen = 10000

// RedisStore implements Store with Redis streams (XADD / XREVRANGE).
// Keys are namespaced: {namespace}:stream:{name}
type RedisStore struct {
	client    *redis.Client
	namespace string
	maxLen    int64
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on an existing client
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
		maxLen:    DefaultMaxLen,
	}
}

// Connect parses url, connects and pings Redis
func Connect(ctx context.Context, url, namespace string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Redis URL")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", opt.Addr)
	}
	return NewRedisStore(client, namespace), nil
}

func (s *RedisStore) key(stream string) string {
	return s.namespace + ":stream:" + stream
}

// Append adds record to stream
func (s *RedisStore) Append(ctx context.Context, stream string, record map[string]any) (string, error) {
	if err := ValidateName(stream); err != nil {
		return "", err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", errors.BadRequestf("record is not JSON encodable: %v", err)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key(stream),
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{dataField: string(data)},
	}).Result()
	if err != nil {
		return "", errors.WithKind(errors.Wrapf(err, "failed to append to stream %s", stream), errors.KindServiceUnavailable)
	}
	return id, nil
}

// Read returns up to limit records, newest first. A stream that does not
// exist reads as empty.
func (s *RedisStore) Read(ctx context.Context, stream string, limit int64) ([]Record, error) {
	if err := ValidateName(stream); err != nil {
		return nil, err
	}

	msgs, err := s.client.XRevRangeN(ctx, s.key(stream), "+", "-", clampLimit(limit)).Result()
	if err == redis.Nil {
		return []Record{}, nil
	}
	if err != nil {
		return nil, errors.WithKind(errors.Wrapf(err, "failed to read stream %s", stream), errors.KindServiceUnavailable)
	}

	records := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		rec, err := decodeMessage(m)
		if err != nil {
			return nil, errors.Wrapf(err, "stream %s entry %s", stream, m.ID)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeMessage(m redis.XMessage) (Record, error) {
	rec := Record{ID: m.ID, Time: idTime(m.ID)}
	raw, ok := m.Values[dataField].(string)
	if !ok {
		// Entries written by other producers: keep their flat fields
		rec.Data = make(map[string]any, len(m.Values))
		for k, v := range m.Values {
			rec.Data[k] = v
		}
		return rec, nil
	}
	if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
		return Record{}, errors.Wrap(err, "invalid record JSON")
	}
	return rec, nil
}

// idTime extracts the millisecond timestamp from a stream id ("1700000000000-0")
func idTime(id string) time.Time {
	ms, _, _ := strings.Cut(id, "-")
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n).UTC()
}
