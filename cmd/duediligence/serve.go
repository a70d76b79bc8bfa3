package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhenghchen/calhacks2025/src/api/webserver"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listenFlag := fs.String("listen", "", "Override HTTP_LISTEN")
	_ = fs.Parse(args)

	a, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.Config.HTTPListen
	if *listenFlag != "" {
		addr = *listenFlag
	}

	gin.SetMode(gin.ReleaseMode)
	var store webserver.DecisionStore
	if a.Decisions != nil {
		store = a.Decisions
	}
	router := webserver.New(a.Config, a.Orchestrator, store, logger)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Infof("due diligence API listening on %s", addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		return err
	}

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	return httpSrv.Shutdown(shutCtx)
}
