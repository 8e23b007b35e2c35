package ws

import (
    "context"
    "net/http"
    "strings"
    "sync"
    "time"

    "github.com/park285/cheese-arena/pkg/arenadto"
    "nhooyr.io/websocket"
    "nhooyr.io/websocket/wsjson"
)

type MessageCallback func(env arenadto.Envelope)

type callbackEntry struct {
    id       int
    callback MessageCallback
}

// Client is a player-side connection used by tools and tests.
type Client struct {
    conn *websocket.Conn

    msgCbs []callbackEntry
    nextID int
    cbM    sync.RWMutex

    pingInterval time.Duration

    done     chan struct{}
    stopCh   chan struct{}
    stopOnce sync.Once
    wg       sync.WaitGroup

    rootCtx    context.Context
    rootCancel context.CancelFunc
}

// DialOption configures a Client before its read loop starts.
type DialOption func(*Client)

// WithMessageCallback registers cb before the first frame can be read.
func WithMessageCallback(cb MessageCallback) DialOption {
    return func(c *Client) {
        c.nextID++
        c.msgCbs = append(c.msgCbs, callbackEntry{id: c.nextID, callback: cb})
    }
}

// Dial connects to wsURL. header may be nil.
func Dial(ctx context.Context, wsURL string, header http.Header, opts ...DialOption) (*Client, error) {
    dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
        CompressionMode: websocket.CompressionNoContextTakeover,
        HTTPHeader:      cleanHeader(header),
    })
    if err != nil {
        return nil, err
    }
    conn.SetReadLimit(readLimit)

    c := &Client{
        conn:         conn,
        pingInterval: 30 * time.Second,
        done:         make(chan struct{}),
        stopCh:       make(chan struct{}),
    }
    for _, opt := range opts {
        opt(c)
    }
    c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
    c.wg.Add(2)
    go c.listen()
    go c.pingLoop()
    return c, nil
}

// Done is closed when the read loop stops.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Send(ctx context.Context, typ string, data any) error {
    env, err := arenadto.NewEnvelope(typ, data)
    if err != nil {
        return err
    }
    return wsjson.Write(ctx, c.conn, env)
}

func (c *Client) OnMessage(cb MessageCallback) int {
    c.cbM.Lock()
    defer c.cbM.Unlock()
    c.nextID++
    c.msgCbs = append(c.msgCbs, callbackEntry{id: c.nextID, callback: cb})
    return c.nextID
}

func (c *Client) RemoveMessageCallback(id int) {
    c.cbM.Lock()
    defer c.cbM.Unlock()
    for i, cb := range c.msgCbs {
        if cb.id == id {
            c.msgCbs = append(c.msgCbs[:i], c.msgCbs[i+1:]...)
            break
        }
    }
}

func (c *Client) listen() {
    defer c.wg.Done()
    defer close(c.done)
    for {
        var env arenadto.Envelope
        if err := wsjson.Read(c.rootCtx, c.conn, &env); err != nil {
            return
        }
        c.cbM.RLock()
        callbacks := make([]callbackEntry, len(c.msgCbs))
        copy(callbacks, c.msgCbs)
        c.cbM.RUnlock()
        for _, entry := range callbacks {
            if entry.callback != nil {
                entry.callback(env)
            }
        }
    }
}

func (c *Client) pingLoop() {
    defer c.wg.Done()
    t := time.NewTicker(c.pingInterval)
    defer t.Stop()
    for {
        select {
        case <-c.stopCh:
            return
        case <-c.done:
            return
        case <-t.C:
            ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
            _ = c.conn.Ping(ctx)
            cancel()
        }
    }
}

func (c *Client) Close(ctx context.Context) error {
    c.stopOnce.Do(func() { close(c.stopCh) })
    _ = c.conn.Close(websocket.StatusNormalClosure, "close")

    finished := make(chan struct{})
    go func() {
        c.wg.Wait()
        close(finished)
    }()

    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-finished:
        c.rootCancel()
        return nil
    }
}

func cleanHeader(in http.Header) http.Header {
    hdr := http.Header{}
    for k, vs := range in {
        if strings.TrimSpace(k) == "" {
            continue
        }
        for _, v := range vs {
            if strings.TrimSpace(v) != "" {
                hdr.Add(k, v)
            }
        }
    }
    return hdr
}
