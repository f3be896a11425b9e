// Command runtimedemo wires up the asynctask runtime end to end: load
// .env, set up a tint-colored slog logger, install the runtime via
// runtimeguard, run a handful of representative workloads, and shut
// down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/rs/xid"

	"github.com/nebularun/asynctask/asynctask"
	"github.com/nebularun/asynctask/cancellation"
	"github.com/nebularun/asynctask/combinator"
	"github.com/nebularun/asynctask/executor"
	"github.com/nebularun/asynctask/retry"
	"github.com/nebularun/asynctask/runtimeguard"
	"github.com/nebularun/asynctask/timer"
	"github.com/nebularun/asynctask/workqueue"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
	asynctask.SetLogger(logger)
	executor.SetRegistryLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workerLimit := runtime.GOMAXPROCS(0) * 4
	if v := os.Getenv("RUNTIMEDEMO_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workerLimit = n
		}
	}

	queue := workqueue.New()
	queue.SetName("runtimedemo-main-queue")

	guard := runtimeguard.New(
		runtimeguard.WithPoolSize(workerLimit),
		runtimeguard.WithComponent(queue),
	)
	executor.SetName(queue, "main-queue")

	logger.Info("runtime installed", "workers", workerLimit)

	// Drain the queue on its own goroutine, the way a real host would
	// dedicate a thread to Poll.
	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	go func() {
		pollInterval := 100 * time.Millisecond
		for pollCtx.Err() == nil {
			queue.Poll(pollCtx, &pollInterval)
		}
	}()

	if err := runDemo(ctx, queue); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("demo run failed", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	stopPolling()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	guard.Close(shutdownCtx)
}

// runDemo exercises the runtime end to end: a cancellable timer race
// (whenAny of a delay and a manual cancel), a retried flaky operation,
// and a fire-and-forget batch tracked through a Collection.
func runDemo(ctx context.Context, exec executor.Executor) error {
	logger := slog.Default()

	cancelSource := cancellation.New()
	delayTask := combinator.Run(ctx, exec, func(ctx context.Context) (string, error) {
		if err := timer.After(ctx, 2*time.Second); err != nil {
			return "", err
		}
		return "delay elapsed", nil
	})

	go func() {
		time.Sleep(200 * time.Millisecond)
		logger.Info("cancelling the race", "id", xid.New().String())
		cancelSource.Cancel()
	}()

	won := combinator.WhenAny(ctx, combinator.ToWaitables([]asynctask.Task[string]{delayTask}), cancellation.FromToken(cancelSource.Token()))
	combinator.Wait(ctx, won)
	logger.Info("race settled", "delayReady", delayTask.IsReady())

	attempt := 0
	flaky := retry.Do(ctx, exec, retry.Policy{MaxRetries: 5, InitialInterval: 20 * time.Millisecond}, func(ctx context.Context) (int, error) {
		attempt++
		if attempt < 3 {
			return 0, fmt.Errorf("transient failure on attempt %d", attempt)
		}
		return attempt, nil
	})
	result := combinator.WaitResult(ctx, flaky)
	if result.Err != nil {
		return result.Err
	}
	logger.Info("flaky operation succeeded", "attempts", result.Value)

	batch := asynctask.NewCollection()
	for i := 0; i < 5; i++ {
		n := i
		batch.Push(combinator.Run(ctx, exec, func(ctx context.Context) (struct{}, error) {
			time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
			logger.Debug("batch item done", "index", n)
			return struct{}{}, nil
		}))
	}
	combinator.Wait(ctx, batch.DisposeAsync(ctx))
	logger.Info("batch drained")

	return nil
}
