// Command mockplatform serves the fake agent platform for local development.
//
//	mockplatform -addr :8080 -token dev-token
//	AGENTPLATFORM_BASE_URL=http://localhost:8080 AGENTPLATFORM_TOKEN=dev-token agentchat chat --user u1
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/agentplatform/internal/mockserver"
	"github.com/kbukum/agentplatform/logger"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "listen address")
		token     = flag.String("token", "", "required bearer token")
		accessKey = flag.String("access-key", "", "required signing access key")
		delay     = flag.Duration("frame-delay", 50*time.Millisecond, "pause between streamed frames")
		level     = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger.Init(logger.Config{Level: *level}, "mockplatform")
	log := logger.WithComponent("mockplatform")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mockserver.New(
		mockserver.WithToken(*token),
		mockserver.WithAccessKey(*accessKey),
		mockserver.WithFrameDelay(*delay),
		mockserver.WithLogger(log),
	)
	err := srv.ListenAndServe(ctx, *addr)
	stop()
	if err != nil {
		log.Error("mock platform stopped", logger.Fields(logger.FieldError, err))
		os.Exit(1)
	}
}
