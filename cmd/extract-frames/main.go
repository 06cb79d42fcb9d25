package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kzs-map/internal/services"
)

func main() {
	logger := log.New(os.Stdout, "[ExtractFrames] ", log.LstdFlags)

	outDir := flag.String("out", "basemaps", "Directory receiving <n>.jpg frames")
	flag.Usage = func() {
		logger.Printf("usage: %s [-out dir] <video>", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count, err := services.NewFrameExtractor().Extract(ctx, flag.Arg(0), *outDir)
	if err != nil {
		logger.Fatalf("❌ %v", err)
	}
	logger.Printf("✅ Wrote %d frames to %s", count, *outDir)
}
