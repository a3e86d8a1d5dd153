package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jgivc/quickdrop/internal/app"
	"github.com/jgivc/quickdrop/internal/config"
	"github.com/jgivc/quickdrop/internal/service/liveness"
)

func main() {
	cfgFileName := flag.String("c", "config.yml", "Path to config file")
	listen := flag.String("listen", "", "Listen address, overrides config")
	dir := flag.String("dir", "", "Storage directory, overrides config")
	static := flag.String("static", "", "Web UI directory, overrides config")
	idle := flag.Duration("idle", 0, "Idle timeout before self shutdown, overrides config; 0 disables it")
	flag.Parse()

	var idleOverride *time.Duration
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "idle" {
			idleOverride = idle
		}
	})

	cfg := config.MustLoad(*cfgFileName, config.Overrides{
		Listen:      *listen,
		Dir:         *dir,
		StaticDir:   *static,
		IdleTimeout: idleOverride,
	})

	app := app.New(cfg)
	app.Start()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(c)

	go func() {
		for sig := range c {
			switch sig {
			case syscall.SIGUSR1:
				app.PrintBanner()
			case syscall.SIGTERM, syscall.SIGINT:
				fmt.Println("Received termination signal. Shutting down...")
				app.Shutdown(liveness.ReasonSignal)

				return
			}
		}
	}()

	<-app.Done()
	app.Stop()
	fmt.Println("done")
}
