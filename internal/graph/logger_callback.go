package graph

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// LoggerCallback logs chain and model events. Streamed model chunks are also
// forwarded to Out when it is set.
type LoggerCallback struct {
	callbacks.HandlerBuilder

	Logger zerolog.Logger
	Out    chan string

	calls  atomic.Int64
	tokens atomic.Int64
}

func NewLoggerCallback(logger zerolog.Logger) *LoggerCallback {
	return &LoggerCallback{Logger: logger}
}

// Usage returns the number of completed model calls and the total tokens
// they reported.
func (cb *LoggerCallback) Usage() (calls, tokens int64) {
	return cb.calls.Load(), cb.tokens.Load()
}

func (cb *LoggerCallback) event(level zerolog.Level, info *callbacks.RunInfo) *zerolog.Event {
	e := cb.Logger.WithLevel(level)
	if info != nil {
		e = e.Str("node", info.Name).Str("component", string(info.Component)).Str("type", info.Type)
	}
	return e
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	e := cb.event(zerolog.DebugLevel, info)
	if info != nil && info.Component == components.ComponentOfChatModel {
		if in := ecmodel.ConvCallbackInput(input); in != nil {
			e = e.Int("messages", len(in.Messages))
		}
	}
	e.Msg("start")
	return ctx
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info == nil || info.Component != components.ComponentOfChatModel {
		cb.event(zerolog.DebugLevel, info).Msg("end")
		return ctx
	}

	cb.calls.Add(1)
	e := cb.event(zerolog.InfoLevel, info)
	if out := ecmodel.ConvCallbackOutput(output); out != nil {
		if out.TokenUsage != nil {
			cb.tokens.Add(int64(out.TokenUsage.TotalTokens))
			e = e.Int("prompt_tokens", out.TokenUsage.PromptTokens).
				Int("completion_tokens", out.TokenUsage.CompletionTokens).
				Int("total_tokens", out.TokenUsage.TotalTokens)
		}
		if out.Message != nil {
			e = e.Int("reply_bytes", len(out.Message.Content))
		}
	}
	e.Msg("model call finished")
	return ctx
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	cb.event(zerolog.ErrorLevel, info).Err(err).Msg("node failed")
	return ctx
}

func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	go func() {
		defer output.Close()
		defer func() {
			if r := recover(); r != nil {
				cb.Logger.Error().Interface("panic", r).Msg("stream callback recovered")
			}
		}()

		chunks := 0
		for {
			frame, err := output.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				cb.event(zerolog.WarnLevel, info).Err(err).Msg("stream receive failed")
				return
			}

			chunks++
			switch v := frame.(type) {
			case *schema.Message:
				cb.push(v)
			case *ecmodel.CallbackOutput:
				cb.push(v.Message)
			}
		}
		cb.event(zerolog.DebugLevel, info).Int("chunks", chunks).Msg("stream finished")
	}()
	return ctx
}

func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	defer input.Close()
	return ctx
}

func (cb *LoggerCallback) push(msg *schema.Message) {
	if cb.Out == nil || msg == nil || msg.Content == "" {
		return
	}
	cb.Out <- msg.Content
}
