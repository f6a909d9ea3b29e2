// Package main starts the organization provisioning service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	orgcreatorcmd "github.com/goliatone/go-orgcreator/internal/cmd/orgcreator"
)

func main() {
	cfg, err := orgcreatorcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orgcreatorcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("orgcreator: %v", err)
	}
}
