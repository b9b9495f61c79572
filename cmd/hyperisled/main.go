package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"hyperisle/internal/app"
)

func main() {
	var (
		cfgPath    string
		replayPath string
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config (json or yaml)")
	flag.StringVar(&replayPath, "replay", "", "ingest a jsonl event file and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	if replayPath != "" {
		err := a.Replay(ctx, replayPath)
		_ = a.Stop(context.Background())
		if err != nil {
			fmt.Println("replay:", err)
			os.Exit(1)
		}
		return
	}

	// systemd integration is best-effort; both calls no-op outside a
	// NOTIFY_SOCKET environment.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go watchdog(ctx, interval/2)
	}

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
}

func watchdog(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
