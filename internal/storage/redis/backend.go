package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/tideline/pkg/id"
	"github.com/rzbill/tideline/pkg/logstore"
)

// Options configures the client built by Open.
type Options struct {
	Addr     string
	DB       int
	Password string
	// DialTimeout bounds the initial PING. Defaults to 5s.
	DialTimeout time.Duration
}

// Backend stores streams in Redis.
type Backend struct {
	rdb   redis.UniversalClient
	owned bool
}

var _ logstore.Backend = (*Backend)(nil)

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis: Options.Addr is required")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		DB:          opts.DB,
		Password:    opts.Password,
		DialTimeout: opts.DialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, logstore.Unavailable("redis.ping", err)
	}
	return &Backend{rdb: rdb, owned: true}, nil
}

// New wraps an existing client. Close does not close it.
func New(rdb redis.UniversalClient) *Backend {
	return &Backend{rdb: rdb}
}

func (b *Backend) Append(ctx context.Context, stream string, fields map[string][]byte, maxLen int64) (id.ID, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	args := &redis.XAddArgs{Stream: stream, ID: "*", Values: values}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	raw, err := b.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return id.Zero, logstore.Unavailable("redis.xadd", err)
	}
	eid, err := id.Parse(raw)
	if err != nil {
		return id.Zero, logstore.Unavailable("redis.xadd", fmt.Errorf("server id %q: %w", raw, err))
	}
	return eid, nil
}

func (b *Backend) Range(ctx context.Context, stream string, min, max id.ID, count int) ([]logstore.Entry, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = b.rdb.XRangeN(ctx, stream, lower(min), upper(max), int64(count)).Result()
	} else {
		msgs, err = b.rdb.XRange(ctx, stream, lower(min), upper(max)).Result()
	}
	if err != nil {
		return nil, logstore.Unavailable("redis.xrange", err)
	}
	return toEntries(msgs)
}

func (b *Backend) RevRange(ctx context.Context, stream string, max, min id.ID, count int) ([]logstore.Entry, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = b.rdb.XRevRangeN(ctx, stream, upper(max), lower(min), int64(count)).Result()
	} else {
		msgs, err = b.rdb.XRevRange(ctx, stream, upper(max), lower(min)).Result()
	}
	if err != nil {
		return nil, logstore.Unavailable("redis.xrevrange", err)
	}
	return toEntries(msgs)
}

// ReadAfter issues XREAD, blocking up to block when block > 0.
func (b *Backend) ReadAfter(ctx context.Context, stream string, after id.ID, count int, block time.Duration) ([]logstore.Entry, error) {
	args := &redis.XReadArgs{
		Streams: []string{stream, after.String()},
		Block:   -1,
	}
	if count > 0 {
		args.Count = int64(count)
	}
	if block > 0 {
		// BLOCK has millisecond resolution and 0 means forever
		args.Block = max(block, time.Millisecond)
	}
	res, err := b.rdb.XRead(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, logstore.Unavailable("redis.xread", err)
	}
	for _, s := range res {
		if s.Stream == stream {
			return toEntries(s.Messages)
		}
	}
	return nil, nil
}

func (b *Backend) Delete(ctx context.Context, stream string, ids ...id.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]string, len(ids))
	for i, eid := range ids {
		raw[i] = eid.String()
	}
	n, err := b.rdb.XDel(ctx, stream, raw...).Result()
	if err != nil {
		return 0, logstore.Unavailable("redis.xdel", err)
	}
	return n, nil
}

// TrimMinID runs an exact XTRIM MINID.
func (b *Backend) TrimMinID(ctx context.Context, stream string, min id.ID) (int64, error) {
	n, err := b.rdb.XTrimMinID(ctx, stream, min.String()).Result()
	if err != nil {
		if isUnsupported(err) {
			return 0, logstore.ErrUnsupported
		}
		return 0, logstore.Unavailable("redis.xtrim", err)
	}
	return n, nil
}

// isUnsupported recognizes servers that predate XTRIM MINID.
func isUnsupported(err error) bool {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return false
	}
	msg := strings.ToLower(rerr.Error())
	return strings.Contains(msg, "syntax error") || strings.Contains(msg, "unknown command")
}

func (b *Backend) DeleteStream(ctx context.Context, stream string) (bool, error) {
	n, err := b.rdb.Del(ctx, stream).Result()
	if err != nil {
		return false, logstore.Unavailable("redis.del", err)
	}
	return n > 0, nil
}

func (b *Backend) Len(ctx context.Context, stream string) (int64, error) {
	n, err := b.rdb.XLen(ctx, stream).Result()
	if err != nil {
		return 0, logstore.Unavailable("redis.xlen", err)
	}
	return n, nil
}

// Streams lists stream-typed keys with SCAN.
func (b *Backend) Streams(ctx context.Context) ([]string, error) {
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := b.rdb.ScanType(ctx, cursor, "*", 256, "stream").Result()
		if err != nil {
			return nil, logstore.Unavailable("redis.scan", err)
		}
		names = append(names, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(names)
	return dedupe(names), nil
}

func (b *Backend) Close() error {
	if b.owned {
		return b.rdb.Close()
	}
	return nil
}

// Ping checks connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	return logstore.Unavailable("redis.ping", b.rdb.Ping(ctx).Err())
}

// lower and upper use the open range markers for the extreme ids.
func lower(eid id.ID) string {
	if eid.IsZero() {
		return "-"
	}
	return eid.String()
}

func upper(eid id.ID) string {
	if eid == id.Max {
		return "+"
	}
	return eid.String()
}

func toEntries(msgs []redis.XMessage) ([]logstore.Entry, error) {
	out := make([]logstore.Entry, 0, len(msgs))
	for _, m := range msgs {
		eid, err := id.Parse(m.ID)
		if err != nil {
			return nil, fmt.Errorf("redis: entry id %q: %w", m.ID, err)
		}
		out = append(out, logstore.Entry{ID: eid, Fields: toFields(m.Values)})
	}
	return out, nil
}

func toFields(values map[string]any) map[string][]byte {
	fields := make(map[string][]byte, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case string:
			fields[k] = []byte(t)
		case []byte:
			fields[k] = t
		default:
			fields[k] = []byte(fmt.Sprint(t))
		}
	}
	return fields
}

// dedupe drops repeats from a sorted slice; SCAN may return a key twice.
func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
