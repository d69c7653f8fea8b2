package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"streamdetect/internal/app"
)

func main() {
	envFile := flag.String("env", "", "Env file to load (defaults to .env when present)")
	flag.Parse()

	application, err := app.NewApp(*envFile)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	summary, err := application.Run(ctx)
	stop()
	application.Close()

	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	fmt.Printf("\n📊 Run summary (%s):\n", summary.Reason)
	fmt.Printf("   Elapsed: %v\n", summary.Elapsed)
	fmt.Printf("   Frames read: %d, sampled: %d\n", summary.FramesRead, summary.FramesSampled)
	fmt.Printf("   Records logged: %d, dropped at cap: %d\n", summary.RecordsLogged, summary.RecordsDropped)
	fmt.Printf("   Duplicates suppressed: %d\n", summary.Suppressed)
	if summary.Err != nil {
		fmt.Printf("❌ %v\n", summary.Err)
		os.Exit(1)
	}
}
