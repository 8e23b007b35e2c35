package snapshot

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/park285/cheese-arena/internal/arena"
    "github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// Store mirrors live rooms into redis and fans room events out over pub/sub.
type Store struct {
    rdb *redis.Client
    ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
    if ttl <= 0 { ttl = defaultTTL }
    return &Store{rdb: rdb, ttl: ttl}
}

// Dial connects to a redis:// or rediss:// URL and pings it.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
    if strings.TrimSpace(redisURL) == "" {
        return nil, fmt.Errorf("REDIS_URL required for snapshot store")
    }
    opts, err := parseRedisURL(redisURL)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(raw)
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" {
        n, err := strconv.Atoi(p)
        if err != nil { return nil, fmt.Errorf("invalid redis db %q", p) }
        db = n
    }
    pass, _ := u.User.Password()
    return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}

func keyRoom(id string) string     { return "arena:room:" + strings.TrimSpace(id) }
func keyEnded(id string) string    { return "arena:room:" + strings.TrimSpace(id) + ":ended" }
func keyActive() string            { return "arena:rooms:active" }
func channelRoom(id string) string { return "arena:events:" + strings.TrimSpace(id) }

const saveRetries = 3

// ErrStaleSnapshot is returned by SaveRoom when redis already holds the same
// or a newer version of the room, or the room was removed.
var ErrStaleSnapshot = errors.New("stale room snapshot")

// SaveRoom stores the snapshot with the store TTL and indexes it as active.
// Ended rooms are removed instead. Writes are ordered by snap.Version; a
// removed room stays removed.
func (s *Store) SaveRoom(ctx context.Context, snap arena.Snapshot) error {
    if snap.State == arena.StateEnded {
        return s.RemoveRoom(ctx, snap.ID)
    }
    raw, err := json.Marshal(snap)
    if err != nil { return fmt.Errorf("marshal snapshot: %w", err) }
    roomK, endedK := keyRoom(snap.ID), keyEnded(snap.ID)

    txf := func(tx *redis.Tx) error {
        n, err := tx.Exists(ctx, endedK).Result()
        if err != nil { return err }
        if n > 0 { return ErrStaleSnapshot }
        cur, err := tx.Get(ctx, roomK).Bytes()
        switch {
        case err == redis.Nil:
        case err != nil:
            return err
        default:
            var stored struct{ Version int64 `json:"version"` }
            if err := json.Unmarshal(cur, &stored); err == nil && stored.Version >= snap.Version {
                return ErrStaleSnapshot
            }
        }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.Set(ctx, roomK, raw, s.ttl)
            pipe.SAdd(ctx, keyActive(), snap.ID)
            pipe.Expire(ctx, keyActive(), s.ttl)
            return nil
        })
        return err
    }
    for i := 0; i < saveRetries; i++ {
        err = s.rdb.Watch(ctx, txf, roomK, endedK)
        if !errors.Is(err, redis.TxFailedErr) { return err }
    }
    return err
}

// LoadRoom returns nil, nil when the room is unknown or expired.
func (s *Store) LoadRoom(ctx context.Context, id string) (*arena.Snapshot, error) {
    raw, err := s.rdb.Get(ctx, keyRoom(id)).Bytes()
    if err == redis.Nil { return nil, nil }
    if err != nil { return nil, err }
    var snap arena.Snapshot
    if err := json.Unmarshal(raw, &snap); err != nil { return nil, fmt.Errorf("unmarshal snapshot: %w", err) }
    return &snap, nil
}

// RemoveRoom deletes the room and leaves a marker so a late SaveRoom cannot
// bring it back.
func (s *Store) RemoveRoom(ctx context.Context, id string) error {
    pipe := s.rdb.TxPipeline()
    pipe.Set(ctx, keyEnded(id), 1, s.ttl)
    pipe.Del(ctx, keyRoom(id))
    pipe.SRem(ctx, keyActive(), id)
    _, err := pipe.Exec(ctx)
    return err
}

// ListActive returns stored snapshots oldest first. Index entries whose
// snapshot expired are pruned.
func (s *Store) ListActive(ctx context.Context) ([]arena.Snapshot, error) {
    ids, err := s.rdb.SMembers(ctx, keyActive()).Result()
    if err != nil { return nil, err }
    if len(ids) == 0 { return []arena.Snapshot{}, nil }
    sort.Strings(ids)

    keys := make([]string, len(ids))
    for i, id := range ids { keys[i] = keyRoom(id) }
    vals, err := s.rdb.MGet(ctx, keys...).Result()
    if err != nil { return nil, err }

    out := make([]arena.Snapshot, 0, len(vals))
    var stale []any
    for i, v := range vals {
        str, ok := v.(string)
        if !ok {
            stale = append(stale, ids[i])
            continue
        }
        var snap arena.Snapshot
        if err := json.Unmarshal([]byte(str), &snap); err != nil { return nil, fmt.Errorf("unmarshal snapshot %s: %w", ids[i], err) }
        out = append(out, snap)
    }
    if len(stale) > 0 {
        _ = s.rdb.SRem(ctx, keyActive(), stale...).Err()
    }
    sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
    return out, nil
}

// Publish sends event as JSON on the room channel.
func (s *Store) Publish(ctx context.Context, roomID string, event any) error {
    raw, err := json.Marshal(event)
    if err != nil { return fmt.Errorf("marshal event: %w", err) }
    return s.rdb.Publish(ctx, channelRoom(roomID), raw).Err()
}

// Subscription delivers raw event payloads for one room.
type Subscription struct {
    ps *redis.PubSub
    C  <-chan []byte
}

func (s *Subscription) Close() error { return s.ps.Close() }

// Subscribe listens on the room channel until ctx ends or Close is called.
func (s *Store) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
    ps := s.rdb.Subscribe(ctx, channelRoom(roomID))
    if _, err := ps.Receive(ctx); err != nil {
        _ = ps.Close()
        return nil, fmt.Errorf("subscribe %s: %w", roomID, err)
    }
    out := make(chan []byte, 16)
    go func() {
        defer close(out)
        msgs := ps.Channel()
        for {
            select {
            case <-ctx.Done():
                _ = ps.Close()
                return
            case m, ok := <-msgs:
                if !ok { return }
                select {
                case out <- []byte(m.Payload):
                case <-ctx.Done():
                    _ = ps.Close()
                    return
                }
            }
        }
    }()
    return &Subscription{ps: ps, C: out}, nil
}
