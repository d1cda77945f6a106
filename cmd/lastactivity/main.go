package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Autoloads .env file to supply environment variables
	_ "github.com/joho/godotenv/autoload"

	"github.com/lildude/lastactivity/internal/config"
	"github.com/lildude/lastactivity/internal/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	c, err := config.Load(os.Getenv, os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.NewLogger(c.LogLevel)

	// Initialize context that cancelled on SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, c, log)
	if err != nil {
		log.WithError(err).Fatal("can't initialize app")
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Warn("interrupt signal")
		cancel()
	}()

	if err := app.Run(ctx); !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("HTTP server error")
	}
}
