package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"trading-desk-go/config"
	"trading-desk-go/internal/container"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	watch := flag.Bool("watch", true, "监听配置文件变更并热更新")
	flag.Parse()

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("初始化容器失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建容器失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}

	var watcher *config.Watcher
	if *watch {
		watcher, err = config.NewWatcher(*cfgPath, 0)
		if err != nil {
			log.Printf("配置监听不可用: %v", err)
		} else {
			watcher.Start(ctx, func(cfg config.AppConfig) {
				if err := c.ApplyConfig(cfg); err != nil {
					log.Printf("配置热更新失败: %v", err)
				}
			})
		}
	}

	// systemd 集成：就绪通知 + 看门狗心跳
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if c.HealthCheck() == nil {
						_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
					}
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := c.Stop(); err != nil {
		log.Printf("停止失败: %v", err)
	}
}
