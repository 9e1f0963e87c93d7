package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"krait/internal/trace"
)

type traceOptions struct {
	output    string
	level     trace.Level
	mode      trace.StorageMode
	ringSize  int
	heartbeat time.Duration
}

// traceOptionsFromFlags reads the persistent --trace* flags. A bare --trace
// implies phase level; error level never streams.
func traceOptionsFromFlags(flags *pflag.FlagSet) (traceOptions, error) {
	var (
		opts              traceOptions
		levelStr, modeStr string
		err               error
	)
	fail := func(name string, err error) (traceOptions, error) {
		return traceOptions{}, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	if opts.output, err = flags.GetString("trace"); err != nil {
		return fail("trace", err)
	}
	if levelStr, err = flags.GetString("trace-level"); err != nil {
		return fail("trace-level", err)
	}
	if modeStr, err = flags.GetString("trace-mode"); err != nil {
		return fail("trace-mode", err)
	}
	if opts.ringSize, err = flags.GetInt("trace-ring-size"); err != nil {
		return fail("trace-ring-size", err)
	}
	if opts.heartbeat, err = flags.GetDuration("trace-heartbeat"); err != nil {
		return fail("trace-heartbeat", err)
	}

	if opts.level, err = trace.ParseLevel(levelStr); err != nil {
		return traceOptions{}, fmt.Errorf("invalid trace level: %w", err)
	}
	if opts.level == trace.LevelOff {
		if opts.output == "" {
			return opts, nil
		}
		opts.level = trace.LevelPhase
	}
	if opts.mode, err = trace.ParseMode(modeStr); err != nil {
		return traceOptions{}, fmt.Errorf("invalid trace mode: %w", err)
	}
	if opts.level == trace.LevelError && opts.mode == trace.ModeStream {
		opts.mode = trace.ModeRing
	}
	if opts.output == "" {
		opts.output = "-"
	}
	return opts, nil
}

// setupTracing attaches a tracer to the command context. The returned
// function ends the command span, then flushes and closes the tracer.
func setupTracing(cmd *cobra.Command) (func(), error) {
	opts, err := traceOptionsFromFlags(cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(ctx, trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(trace.Config{
		Level:      opts.level,
		Mode:       opts.mode,
		OutputPath: opts.output,
		RingSize:   opts.ringSize,
		Heartbeat:  opts.heartbeat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	ctx = trace.WithTracer(ctx, tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	var hb *trace.Heartbeat
	if opts.heartbeat > 0 {
		hb = trace.StartHeartbeat(tracer, opts.heartbeat)
	}
	span := trace.Begin(tracer, trace.ScopeEngine, "cmd:"+cmd.Name(), 0)

	report := func(what string, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: %s error: %v\n", what, err)
		}
	}
	return func() {
		span.End("")
		if hb != nil {
			hb.Stop()
		}
		report("flush", tracer.Flush())
		report("close", tracer.Close())
	}, nil
}
