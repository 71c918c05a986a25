package main

import (
	"time"

	"tankchat/internal/config"
	"tankchat/internal/db"
	clog "tankchat/internal/log"
	"tankchat/internal/metrics"
	"tankchat/internal/sched"
	"tankchat/internal/server"
	"tankchat/internal/service"
	"tankchat/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库、装配过期清理并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	retention := service.NewRetentionService(gdb, cfg.PlatformIdentity, cfg.RetentionWindow())
	entry, err := retention.Bootstrap(cfg.SweepPeriod())
	if err != nil {
		log.Fatal().Err(err).Msg("retention bootstrap")
	}

	scheduler := sched.New()
	defer scheduler.Stop()
	scheduler.Every(entry.Period, func(now time.Time) {
		n, err := retention.Sweep(service.Call{Identity: cfg.PlatformIdentity, Now: now})
		if err != nil {
			log.Error().Err(err).Msg("retention sweep")
			return
		}
		metrics.SweepsTotal.Inc()
		if n > 0 {
			metrics.MessagesExpiredTotal.Add(float64(n))
			log.Info().Int64("deleted", n).Msg("retention sweep")
		}
	})

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	r := server.SetupRouter(cfg, gdb, hub)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
