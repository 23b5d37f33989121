// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/cnl/lib/config"
	"github.com/bureau-foundation/cnl/lib/face"
	"github.com/bureau-foundation/cnl/lib/namespace"
	"github.com/bureau-foundation/cnl/lib/ndn"
	"github.com/bureau-foundation/cnl/lib/object"
	"github.com/bureau-foundation/cnl/lib/stream"
)

// consume follows the stream until ctx is done, the producer closes
// the connection, or opts.count objects have been printed.
func consume(ctx context.Context, cfg *config.Config, opts *options, output io.Writer, logger *slog.Logger) error {
	prefix, err := cfg.StreamPrefix()
	if err != nil {
		return err
	}
	chain, err := buildChain(cfg.Stream, consumerRole)
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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Metrics.Address != "" {
		if err := serveMetrics(ctx, cfg.Metrics.Address, registry, logger); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	loop := face.NewLoop()
	connection, err := face.Dial(ctx, cfg.Face.Connect, loop, face.StreamOptions{
		Options:           face.Options{Logger: logger, Metrics: metrics},
		DeadNonceCapacity: cfg.Face.DeadNonceCapacity,
	})
	if err != nil {
		return err
	}
	defer connection.Close()
	logger.Info("consuming stream",
		"prefix", prefix.String(),
		"address", cfg.Face.Connect,
		"pipeline_size", cfg.Stream.PipelineSize,
	)

	streamNamespace := namespace.New(prefix)
	streamNamespace.SetLogger(logger)
	streamNamespace.SetTransformer(chain)
	streamNamespace.SetRetryOptions(cfg.RetryOptions())
	if err := streamNamespace.SetFace(connection, false); err != nil {
		return err
	}

	printed := 0
	onObject := func(sequence uint64, meta *object.ContentMetaInfo, objectNamespace *namespace.Namespace) {
		if !authentic(objectNamespace, signer) {
			logger.Warn("dropping object with invalid signature", "sequence", sequence)
			return
		}
		fmt.Fprintf(output, "%d\t%s\n", sequence, objectNamespace.ContentBytes())
		logger.Debug("received object",
			"sequence", sequence,
			"content_type", meta.ContentType,
			"size", meta.Size,
			"age", time.Since(meta.Time()),
		)
		printed++
		if opts.count > 0 && printed >= opts.count {
			cancel()
		}
	}
	handler := stream.NewHandler(streamNamespace, cfg.Stream.PipelineSize, onObject, stream.Options{
		MaxSegmentPayloadLength: cfg.Stream.MaxSegmentPayload,
		Logger:                  logger,
	})
	defer handler.Close()

	loop.Post(func() {
		if err := handler.Consume(); err != nil {
			logger.Error("starting consumer", "error", err)
			cancel()
		}
	})
	go func() {
		select {
		case <-connection.Done():
			logger.Info("producer closed the connection")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// authentic checks the signature of the object's _meta packet, whose
// digest covers the whole object. Without a signer the packet must
// carry a valid SHA-256 digest.
func authentic(objectNamespace *namespace.Namespace, signer *ndn.KeyedSigner) bool {
	data := objectNamespace.Child(object.MetaComponent).Data()
	if data == nil {
		return false
	}
	if signer != nil {
		return signer.Verify(data)
	}
	return ndn.VerifyDigest(data)
}
