// Command search-tool serves the web_search tool over stdin/stdout.
// Logs go to stderr so stdout carries protocol frames only.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhenghchen/calhacks2025/src/app"
	"github.com/zhenghchen/calhacks2025/src/config"
	"github.com/zhenghchen/calhacks2025/src/logging"
)

var logLevelFlag = flag.String("log-level", "", "Override LOG_LEVEL (debug|info|warn|error)")

func main() {
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		logging.New("search-tool", os.Stderr, "error").Errorf("config: %v", err)
		os.Exit(1)
	}
	level := cfg.LogLevel
	if *logLevelFlag != "" {
		level = *logLevelFlag
	}
	log := logging.New("search-tool", os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	searcher, closeSearcher, err := app.NewSearcher(ctx, cfg, log)
	if err != nil {
		log.Errorf("searcher: %v", err)
		os.Exit(1)
	}
	defer closeSearcher()

	server, err := app.NewToolServer(searcher, log)
	if err != nil {
		log.Errorf("tool server: %v", err)
		os.Exit(1)
	}

	log.Infof("serving %s %s on stdio", app.ServerInfo.Name, app.ServerInfo.Version)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Errorf("serve: %v", err)
		os.Exit(1)
	}
}
