// hostd is the credential broker and stream-token proxy.
//
// It holds the upstream Anam API key, gates access behind login sessions
// or the shared access password, and exchanges persona configs for
// short-lived stream tokens on behalf of kiosk clients.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/lumenwave/go-host/internal/config"
	"github.com/lumenwave/go-host/internal/log"
	"github.com/lumenwave/go-host/pkg/anam"
	"github.com/lumenwave/go-host/pkg/broker"
	"github.com/lumenwave/go-host/pkg/web"
)

func main() {
	log.Init(config.LogLevel())

	apiKey := config.AnamAPIKey()
	password, isDefault := config.AccessPassword()
	if isDefault {
		log.Warn("ACCESS_PASSWORD not set, using the built-in fallback; set it before exposing this server")
	}

	client, err := anam.NewClient(apiKey, anam.WithBaseURL(config.AnamAPIURL()))
	if err != nil {
		log.Error("anam client", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(web.Config{
		Port:          config.Port(),
		Password:      password,
		SecureCookies: os.Getenv("GO_ENV") == "production",
	}, broker.NewStore(), client)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		server.Shutdown()
	}()

	if err := server.Listen(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
