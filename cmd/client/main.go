// Package main is the terminal client. It plays the game locally, saves
// progress next to the binary and, unless started offline, keeps an
// account on the server in sync.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/client/remote"
	"github.com/atinyakov/AuraTemple/internal/client/storage"
	"github.com/atinyakov/AuraTemple/internal/client/syncer"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/logger"
)

var (
	version   string
	buildDate string
)

// tickInterval is how often production is credited while the shell runs.
const tickInterval = 100 * time.Millisecond

// main parses flags, restores local progress and runs the shell.
func main() {
	var (
		baseURL     string
		dataDir     string
		catalogPath string
		logPath     string
		logLevel    string
		offline     bool
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&dataDir, "dir", ".aura", "directory for local saves")
	flag.StringVar(&catalogPath, "catalog", "", "path to a producer catalogue YAML file")
	flag.StringVar(&logPath, "log", "aura-client.log", "log file")
	flag.StringVar(&logLevel, "l", "info", "log level")
	flag.BoolVar(&offline, "offline", false, "play without a server")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Aura Temple Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	log := logger.New()
	if err := log.Init(logLevel, logPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()

	if err := run(log.Log, baseURL, dataDir, catalogPath, offline); err != nil {
		log.Log.Error("client stopped", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(log *zap.Logger, baseURL, dataDir, catalogPath string, offline bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat := game.DefaultCatalog()
	if catalogPath != "" {
		var err error
		if cat, err = game.LoadCatalog(catalogPath); err != nil {
			return err
		}
	}

	ls, err := storage.New(dataDir, cat, log)
	if err != nil {
		return err
	}
	session := game.NewSession(cat, ls.LoadState())

	var rc syncer.Remote
	if !offline {
		rc = remote.New(baseURL, nil, remote.DefaultTimeout)
	}
	ctl := syncer.New(session, ls, rc, log)
	defer func() {
		if err := ctl.Close(); err != nil {
			log.Error("failed to save on exit", zap.Error(err))
		}
	}()

	if found, err := ctl.Resume(ctx); found && err != nil {
		fmt.Println(describeError(err))
	}
	ctl.SyncLeaderboard(true)

	// Ticks stop before the deferred Close flushes.
	tickCtx, stopTicks := context.WithCancel(ctx)
	ticksDone := make(chan struct{})
	go func() {
		defer close(ticksDone)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case now := <-ticker.C:
				session.Tick(now)
			}
		}
	}()
	defer func() {
		stopTicks()
		<-ticksDone
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		newShell(session, ctl, os.Stdin, os.Stdout).run(ctx)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		fmt.Println()
	}
	return nil
}
