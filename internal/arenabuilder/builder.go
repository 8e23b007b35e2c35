package arenabuilder

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/park285/cheese-arena/internal/accounts"
    "github.com/park285/cheese-arena/internal/api/httpapi"
    corearena "github.com/park285/cheese-arena/internal/arena"
    "github.com/park285/cheese-arena/internal/config"
    "github.com/park285/cheese-arena/internal/history"
    "github.com/park285/cheese-arena/internal/msgcat"
    "github.com/park285/cheese-arena/internal/obslog"
    "github.com/park285/cheese-arena/internal/render"
    svcarena "github.com/park285/cheese-arena/internal/service/arena"
    "github.com/park285/cheese-arena/internal/snapshot"
    "github.com/park285/cheese-arena/internal/transport/ws"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

type Deps struct {
    Service *svcarena.Service
    Hub     *ws.Hub
    Router  *gin.Engine
    History history.Repository
    Redis   *redis.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Deps, error) {
    if cfg == nil {
        return nil, fmt.Errorf("nil config")
    }

    catalog, err := msgcat.New(cfg.MessageDir)
    if err != nil {
        return nil, fmt.Errorf("load messages: %w", err)
    }

    d := &Deps{}
    ok := false
    defer func() {
        if !ok {
            _ = d.Close()
        }
    }()

    // History
    openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    d.History, err = openHistory(openCtx, cfg)
    if err != nil {
        return nil, err
    }

    // Snapshots (Redis optional)
    var store *snapshot.Store
    if strings.TrimSpace(cfg.RedisURL) != "" {
        d.Redis, err = snapshot.Dial(openCtx, cfg.RedisURL)
        if err != nil {
            return nil, fmt.Errorf("init redis: %w", err)
        }
        store = snapshot.NewStore(d.Redis, cfg.SnapshotTTL())
    }

    // Accounts
    var dir accounts.Directory = accounts.NewStaticDirectory()
    if u := strings.TrimSpace(cfg.AccountServiceURL); u != "" {
        dir = accounts.NewClient(u, accounts.WithTimeout(cfg.AccountTimeout()))
    }

    d.Service, err = svcarena.NewService(svcarena.Deps{
        Registry:     corearena.NewRegistry(),
        Catalog:      catalog,
        History:      d.History,
        Snapshots:    store,
        Directory:    dir,
        Renderer:     render.NewRenderer(0),
        RenderImages: cfg.RenderBoardImages,
    })
    if err != nil {
        return nil, err
    }
    d.Hub = ws.NewHub(d.Service, ws.WithOrigins(cfg.AllowedOrigins))
    d.Service.SetNotifier(d.Hub)

    d.Router = httpapi.NewRouter(httpapi.Deps{
        Service:      d.Service,
        History:      d.History,
        HistoryLimit: cfg.HistoryLimit,
        WSPath:       cfg.WSPath,
        WS:           d.Hub,
        Spectator:    ws.NewSpectator(d.Service, cfg.AllowedOrigins),
    })

    obslog.L().Info("arena_built",
        zap.String("history", cfg.HistoryBackend),
        zap.Bool("redis", store != nil),
        zap.Bool("account_service", cfg.AccountServiceURL != ""),
        zap.Bool("board_images", cfg.RenderBoardImages),
    )
    ok = true
    return d, nil
}

func openHistory(ctx context.Context, cfg *config.AppConfig) (history.Repository, error) {
    switch cfg.HistoryBackend {
    case "", config.HistoryMemory:
        return history.NewMemoryRepository(), nil
    case config.HistoryPostgres:
        if strings.TrimSpace(cfg.DatabaseURL) == "" {
            return nil, fmt.Errorf("DATABASE_URL is required for postgres history")
        }
        repo, err := history.OpenPostgres(ctx, cfg.DatabaseURL)
        if err != nil {
            return nil, fmt.Errorf("init postgres history: %w", err)
        }
        return repo, nil
    case config.HistoryMongo:
        if strings.TrimSpace(cfg.MongoURL) == "" {
            return nil, fmt.Errorf("MONGO_URL is required for mongo history")
        }
        repo, err := history.OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
        if err != nil {
            return nil, fmt.Errorf("init mongo history: %w", err)
        }
        return repo, nil
    }
    return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
}

// Close releases the history backend and the redis client.
func (d *Deps) Close() error {
    var errs []error
    if d.History != nil {
        errs = append(errs, d.History.Close())
    }
    if d.Redis != nil {
        errs = append(errs, d.Redis.Close())
    }
    return errors.Join(errs...)
}
