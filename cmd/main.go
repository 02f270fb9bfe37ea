package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"TrickTable/config"
	"TrickTable/internal/game/manager"
	"TrickTable/internal/lobby"
	"TrickTable/internal/session"
	"TrickTable/internal/storage"
	"TrickTable/internal/utils"
	"TrickTable/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.Load(); err != nil {
		utils.Log.Fatal("load config", "err", err)
	}
	utils.Init(config.C.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//-------------------------------------------------------
	// 1. 初始化存储
	//-------------------------------------------------------
	store, err := openStore(ctx, config.C)
	if err != nil {
		utils.Log.Fatal("store init failed", "driver", config.C.Store.Driver, "err", err)
	}
	defer storage.Close()

	//-------------------------------------------------------
	// 2. GameManager（每个 session 一个 engine，按需启动）
	//-------------------------------------------------------
	gameMgr := manager.NewGameManager(store, config.C.Engine.QueueSize)

	//-------------------------------------------------------
	// 3. Gin + CORS
	//-------------------------------------------------------
	r := gin.New()
	r.Use(gin.Recovery())
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}
	if slices.Contains(config.C.Server.AllowOrigins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = config.C.Server.AllowOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": gameMgr.Running()})
	})

	lh := lobby.NewHandler(lobby.NewService(store))
	r.POST("/create-game", lh.Create)
	r.GET("/games", lh.List)

	//-------------------------------------------------------
	// 4. WebSocket 入口
	//-------------------------------------------------------
	r.GET("/game/:id", websocket.ServeWS(gameMgr, config.C.Hub.SendBuffer))

	srv := &http.Server{
		Addr:              config.C.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Log.Info("server running", "addr", config.C.Server.Port, "store", config.C.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	utils.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Log.Error("http shutdown", "err", err)
	}
	gameMgr.Close()
}

func openStore(ctx context.Context, c config.Config) (session.Store, error) {
	switch c.Store.Driver {
	case "memory":
		return session.NewMemoryStore(), nil
	case "file":
		return session.NewFileStore(c.Store.Dir)
	case "redis":
		if err := storage.InitRedis(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB); err != nil {
			return nil, err
		}
		return session.NewRedisStore(storage.Rdb), nil
	case "postgres":
		if err := storage.InitPostgres(ctx, c.Store.DSN); err != nil {
			return nil, err
		}
		return session.NewSQLStore(ctx, storage.DB, session.DialectPostgres)
	case "sqlite":
		if err := storage.InitSQLite(ctx, c.Store.DSN); err != nil {
			return nil, err
		}
		return session.NewSQLStore(ctx, storage.DB, session.DialectSQLite)
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
}
