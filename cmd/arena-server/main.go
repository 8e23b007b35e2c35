package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/park285/cheese-arena/internal/arenabuilder"
    appcfg "github.com/park285/cheese-arena/internal/config"
    "github.com/park285/cheese-arena/internal/obslog"
    "go.uber.org/zap"
)

func main() {
    cfg, err := appcfg.Load()
    if err != nil {
        log.Fatalf("config error: %v", err)
    }
    if err := obslog.InitFromEnv(); err != nil {
        log.Fatalf("logger init error: %v", err)
    }
    defer obslog.Sync()
    gin.SetMode(gin.ReleaseMode)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    deps, err := arenabuilder.New(ctx, cfg)
    if err != nil {
        obslog.L().Fatal("arena_init_error", zap.Error(err))
    }
    defer deps.Close()

    srv := &http.Server{
        Addr:              cfg.HTTPAddr,
        Handler:           deps.Router,
        ReadHeaderTimeout: 10 * time.Second,
    }
    go func() {
        obslog.L().Info("http_listen", zap.String("addr", cfg.HTTPAddr), zap.String("ws_path", cfg.WSPath))
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            obslog.L().Error("http_serve_error", zap.Error(err))
            stop()
        }
    }()

    <-ctx.Done()
    obslog.L().Info("shutdown_begin")
    sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    // Hijacked websocket connections are not tracked by Shutdown.
    if err := deps.Hub.Close(sctx); err != nil {
        obslog.L().Warn("ws_close_error", zap.Error(err))
    }
    if err := srv.Shutdown(sctx); err != nil {
        obslog.L().Warn("http_shutdown_error", zap.Error(err))
    }
    obslog.L().Info("shutdown_done")
}
