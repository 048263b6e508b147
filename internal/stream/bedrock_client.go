// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package stream

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/rapidaai/voicegateway/internal/logging"
)

// BedrockOpener opens a Nova Sonic bidirectional stream through
// bedrockruntime.Client.InvokeModelWithBidirectionalStream, one stream
// per session.
type BedrockOpener struct {
	client *bedrockruntime.Client
	logger logging.Logger
}

// NewBedrockOpener loads AWS credentials the standard way (environment,
// shared config, or the named profile) and builds a bedrockruntime
// client scoped to region.
func NewBedrockOpener(ctx context.Context, logger logging.Logger, region, profile string) (*BedrockOpener, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockOpener{
		client: bedrockruntime.NewFromConfig(cfg),
		logger: logger,
	}, nil
}

// Open starts a new bidirectional stream against modelID.
func (o *BedrockOpener) Open(ctx context.Context, modelID string) (BidiStream, error) {
	output, err := o.client.InvokeModelWithBidirectionalStream(ctx, &bedrockruntime.InvokeModelWithBidirectionalStreamInput{
		ModelId: &modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("open bidirectional stream: %w", err)
	}
	return &bedrockStream{stream: output.GetStream(), logger: o.logger}, nil
}

type bedrockStream struct {
	stream bedrockStreamEvents
	logger logging.Logger
}

// bedrockStreamEvents narrows the SDK's generated event-stream type to
// what this driver needs, so it can be swapped out in tests without
// depending on the concrete SDK stream type.
type bedrockStreamEvents interface {
	Send(ctx context.Context, input types.InvokeModelWithBidirectionalStreamInput) error
	Events() <-chan types.InvokeModelWithBidirectionalStreamOutput
	Close() error
	Err() error
}

func (b *bedrockStream) Send(ctx context.Context, chunk []byte) error {
	return b.stream.Send(ctx, &types.InvokeModelWithBidirectionalStreamInputMemberChunk{
		Value: types.BidirectionalInputPayloadPart{Bytes: chunk},
	})
}

func (b *bedrockStream) Recv(ctx context.Context) ([]byte, error) {
	select {
	case evt, ok := <-b.stream.Events():
		if !ok {
			if err := b.stream.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		chunk, ok := evt.(*types.InvokeModelWithBidirectionalStreamOutputMemberChunk)
		if !ok {
			return nil, fmt.Errorf("unexpected bidirectional stream event type %T", evt)
		}
		return chunk.Value.Bytes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *bedrockStream) Close() error {
	return b.stream.Close()
}
