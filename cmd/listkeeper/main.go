package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/listkeeper/listkeeper/pkg/persist"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := persist.Main(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
