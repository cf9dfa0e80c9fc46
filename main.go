package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kataras/golog"

	"Prism/server/config"
	"Prism/server/handler/encode"
)

func main() {
	hashKey := flag.String("hashkey", "", "print the bcrypt hash for an API key and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := config.HashKey(*hashKey)
		if err != nil {
			golog.Fatalf("hash key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		golog.Fatalf("configuration error: %v", err)
	}
	golog.SetLevel(cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	encode.New(cfg).Register(router)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}
	go func() {
		golog.Infof("encode agent listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			golog.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	golog.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		golog.Errorf("shutdown: %v", err)
	}
}
