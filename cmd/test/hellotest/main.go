package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Address     string `long:"address" default:"127.0.0.1:5000" description:"address to listen on"`
	FailAfter   int    `long:"fail-after" description:"Seconds after which responses stop saying hello (debug feature)"`
	RunDuration int    `long:"run-duration" description:"Duration in seconds to run the app (debug feature)"`
}

func main() {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Running Hellotest, opts: %+v...\n", opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.RunDuration)*time.Second)
		defer cancel()
	}

	var broken atomic.Bool
	if opts.FailAfter > 0 {
		time.AfterFunc(time.Duration(opts.FailAfter)*time.Second, func() {
			fmt.Printf("Hellotest switched to failing responses\n")
			broken.Store(true)
		})
	}

	server := &http.Server{
		Addr: opts.Address,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if broken.Load() {
				_, _ = w.Write([]byte("goodbye\n"))
				return
			}
			_, _ = w.Write([]byte("Hello World!\n"))
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Hellotest is listening on %s\n", opts.Address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Printf("Hellotest failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Hellotest stopped\n")
}
