// Command httpd runs the origin server against a directory of static
// files and the built-in "/" and "/echo" routes.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	originserver "github.com/originserver/httpd"
	"github.com/originserver/httpd/router"
)

func main() {
	cfg := originserver.DefaultConfig()

	addr := flag.String("addr", cfg.Addr, "listen address")
	staticDir := flag.String("static-dir", "static", "directory served under /static/")
	timeout := flag.Duration("timeout", cfg.Timeout, "idle connection timeout")
	actionLimit := flag.Int("action-limit", cfg.ActionLimit, "event-loop dispatches before a slot is forced to Request Timeout")
	backlog := flag.Int("backlog", cfg.Backlog, "listen backlog")
	flag.Parse()

	cfg.Addr = *addr
	cfg.Timeout = *timeout
	cfg.ActionLimit = *actionLimit
	cfg.Backlog = *backlog

	logger := log.New(os.Stderr, "httpd: ", log.LstdFlags)
	rt := router.New(*staticDir)
	srv := originserver.NewServer(cfg, rt, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Printf("shutting down")
		srv.Shutdown()
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Printf("exiting: %v", err)
		os.Exit(1)
	}
}
