package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	redisadapter "github.com/target/jobmatch/internal/adapters/redis"
)

const sessionScanBatch = 100

type clearSessionsOptions struct {
	Prefix string
	Yes    bool
	DryRun bool
}

func runClearSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearSessionsFlags(args)
	if err != nil {
		return err
	}
	if !opts.DryRun {
		if confirmErr := confirmAction(sessionsConfirmOptions{yes: opts.Yes, prefix: opts.Prefix}, "delete sessions"); confirmErr != nil {
			return confirmErr
		}
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	client, err := maybeConnectRedis(cmdCtx.Logger, &cmdCtx.Config.Redis)
	if err != nil {
		if errors.Is(err, errRedisNotConfigured) {
			return writeln(os.Stderr, "Redis client is not available")
		}
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	deleted, err := deleteByPrefix(ctx, client, opts.Prefix, opts.DryRun)
	if err != nil {
		return err
	}
	verb := "deleted"
	if opts.DryRun {
		verb = "would delete"
	}
	return writef(os.Stdout, "%s %d session(s)\n", verb, deleted)
}

// deleteByPrefix scans keys under prefix and removes them in batches.
func deleteByPrefix(ctx context.Context, client redis.UniversalClient, prefix string, dryRun bool) (int, error) {
	iter := client.Scan(ctx, 0, prefix+"*", sessionScanBatch).Iterator()
	total := 0
	batch := make([]string, 0, sessionScanBatch)
	flush := func() error {
		if len(batch) == 0 || dryRun {
			batch = batch[:0]
			return nil
		}
		if err := client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		total++
		if len(batch) == sessionScanBatch {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return total, nil
}

func parseClearSessionsFlags(args []string) (clearSessionsOptions, error) {
	fs := flag.NewFlagSet("clear-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearSessionsOptions
	fs.StringVar(&opts.Prefix, "prefix", redisadapter.DefaultSessionPrefix, "Redis key prefix of stored sessions")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Count matching sessions without deleting them")
	if err := fs.Parse(args); err != nil {
		return clearSessionsOptions{}, err
	}
	if opts.Prefix == "" {
		return clearSessionsOptions{}, errors.New("--prefix must not be empty")
	}
	return opts, nil
}
