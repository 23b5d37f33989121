// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/bureau-foundation/cnl/lib/config"
	"github.com/bureau-foundation/cnl/lib/face"
	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/stream"
)

// produce serves the stream to every consumer that connects until ctx
// is done. Objects come from input lines, or from a ticker when
// opts.interval is set.
func produce(ctx context.Context, cfg *config.Config, opts *options, input io.Reader, logger *slog.Logger) error {
	prefix, err := cfg.StreamPrefix()
	if err != nil {
		return err
	}
	chain, err := buildChain(cfg.Stream, producerRole)
	if err != nil {
		return err
	}
	signer, err := buildSigner(cfg.Stream, prefix)
	if err != nil {
		return err
	}
	registry, metrics, err := newMetrics()
	if err != nil {
		return err
	}
	if cfg.Metrics.Address != "" {
		if err := serveMetrics(ctx, cfg.Metrics.Address, registry, logger); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	listener, err := face.Listen(cfg.Face.Listen)
	if err != nil {
		return err
	}
	defer listener.Close()
	logger.Info("producing stream", "prefix", prefix.String(), "address", listener.Address())

	loop := face.NewLoop()
	faceOptions := face.Options{Logger: logger, Metrics: metrics}
	fanout := face.NewFanout(loop, faceOptions)

	streamNamespace := namespace.New(prefix)
	streamNamespace.SetLogger(logger)
	streamNamespace.SetEncoder(chain)
	if signer != nil {
		streamNamespace.SetSigner(signer)
	}
	if err := streamNamespace.SetFace(fanout, true); err != nil {
		return err
	}
	handler := stream.NewHandler(streamNamespace, 0, nil, stream.Options{
		LatestPacketFreshnessPeriod: time.Duration(cfg.Stream.LatestFreshness),
		MaxSegmentPayloadLength:     cfg.Stream.MaxSegmentPayload,
		Logger:                      logger,
	})
	defer handler.Close()

	go acceptConsumers(listener, loop, fanout, face.StreamOptions{
		Options:           faceOptions,
		DeadNonceCapacity: cfg.Face.DeadNonceCapacity,
	}, logger)

	publish := func(payload []byte) {
		loop.Post(func() {
			if err := handler.AddObject(payload, contentType, nil); err != nil {
				logger.Error("publishing object", "error", err)
				return
			}
			logger.Debug("published object",
				"sequence", handler.ProducedSequenceNumber(),
				"size", len(payload),
			)
		})
	}
	if opts.interval > 0 {
		go generate(ctx, opts.interval, publish)
	} else {
		go readLines(input, publish, logger)
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func acceptConsumers(listener *face.Listener, loop *face.Loop, fanout *face.Fanout, options face.StreamOptions, logger *slog.Logger) {
	for {
		member, err := listener.Accept(loop, options)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Error("accepting consumer", "error", err)
			}
			return
		}
		fanout.Add(member)
	}
}

// readLines publishes each line of input. The stream stays available
// to consumers after input ends.
func readLines(input io.Reader, publish func([]byte), logger *slog.Logger) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for scanner.Scan() {
		publish(append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading input", "error", err)
		return
	}
	logger.Info("input closed; still serving published objects")
}

func generate(ctx context.Context, interval time.Duration, publish func([]byte)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for count := 0; ; count++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			publish(fmt.Appendf(nil, "object %d at %s", count, now.UTC().Format(time.RFC3339Nano)))
		}
	}
}
