package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookkeeping/config"
	"bookkeeping/database"
	"bookkeeping/logger"
	"bookkeeping/middleware"
	"bookkeeping/router"
	"bookkeeping/service"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(configFile *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = normalizePort(port)
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "监听端口，如: 8080 或 :8080")

	return cmd
}

// normalizePort 自动添加冒号前缀
func normalizePort(port string) string {
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}

// bootstrap 初始化日志、数据库与可选的 Redis
func bootstrap(ctx context.Context, cfg *config.Config) (*slog.Logger, *redis.Client, error) {
	log := logger.New(cfg.Log)
	slog.SetDefault(log)
	config.PrintConfig(log)

	if err := database.Init(cfg, log); err != nil {
		return nil, nil, fmt.Errorf("数据库初始化失败: %w", err)
	}

	if !cfg.Redis.Enabled {
		return log, nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// 缓存不可用时仍然可以提供服务，汇总直接查库
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis 连接失败，汇总缓存不可用", "addr", cfg.Redis.Addr, "error", err)
	}
	return log, rdb, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, rdb, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	middleware.InitJWT(cfg)
	svc := service.NewServices(database.DB, cfg, rdb, log)
	r := router.SetupRouter(cfg, svc, log)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("记账本服务已启动",
			"addr", cfg.Server.Port,
			"swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port),
			"api", fmt.Sprintf("http://localhost%s/api/v1/", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// 收到退出信号或监听失败时关闭服务
		<-gctx.Done()
		log.Info("正在关闭服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭服务失败: %w", err)
		}
		return nil
	})
	return g.Wait()
}
