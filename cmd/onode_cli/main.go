package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/felixhuettner/ceph/core/indexing/onodetree"
	"github.com/felixhuettner/ceph/core/onode/manager"
	"github.com/felixhuettner/ceph/core/storage"
	"github.com/felixhuettner/ceph/core/transaction"
	"github.com/felixhuettner/ceph/pkg/config"
	"github.com/felixhuettner/ceph/pkg/logger"
	"github.com/felixhuettner/ceph/pkg/telemetry"
)

var (
	configPath = flag.String("config", "", "path to the YAML configuration file")
	dbPath     = flag.String("db", "", "onode store file, overrides store.path")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer zlogger.Sync()

	tel, shutdownTelemetry, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		zlogger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			zlogger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	db, err := storage.Open(cfg.Store, zlogger)
	if err != nil {
		zlogger.Fatal("failed to open onode store", zap.Error(err))
	}
	defer db.Close()

	onodes, err := manager.New(onodetree.New(zlogger), zlogger, tel)
	if err != nil {
		zlogger.Fatal("failed to create onode manager", zap.Error(err))
	}
	s := &session{
		txns:   transaction.NewManager(db, zlogger),
		onodes: onodes,
		out:    os.Stdout,
		logger: zlogger,
	}

	ctx := context.Background()
	if args := flag.Args(); len(args) > 0 {
		if err := s.exec(ctx, args); err != nil && !errors.Is(err, errExit) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := interactive(ctx, s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func interactive(ctx context.Context, s *session) error {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".onode_cli_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "onode> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(s.out, "Onode CLI (interactive mode). Type 'help' for commands, 'exit' or 'quit' to leave.")
	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if err := s.exec(ctx, args); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(s.out, "Exiting onode CLI.")
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}
