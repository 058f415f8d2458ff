package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
	"github.com/yysun/agent-world-sub006/messages"
	"github.com/yysun/agent-world-sub006/provider"
)

var errTruncatedStream = errors.New("model stream closed before the response finished")

type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	client := openai.NewClient(options...)
	return &Provider{
		client: client,
	}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) openai.ChatCompletionNewParams {
	result, user := messagesToOpenAI(params.Agent, params.Instructions, params.Thread)

	oaiParams := openai.ChatCompletionNewParams{
		Messages:    openai.F(result),
		Model:       openai.F(params.Model),
		N:           openai.Int(1),
		Temperature: openai.Float(0.1),
	}
	if strings.TrimSpace(user) != "" {
		oaiParams.User = openai.String(user)
	}

	return oaiParams
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	chatParams := p.buildRequest(&params)

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, chatParams, &params, events)
		} else {
			p.runOnce(ctx, chatParams, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, params)

	if strm.Err() != nil {
		events <- provider.Error{
			Err:       strm.Err(),
			MessageID: command.MessageID,
			SessionID: command.SessionID,
			Timestamp: strfmt.DateTime(time.Now()),
		}
		strm.Close()
		return
	}

	// Ensure cleanup on all exit paths
	defer func() {
		strm.Close()
		// Send error if context was cancelled
		if err := ctx.Err(); err != nil {
			events <- provider.Error{
				Err:       err,
				MessageID: command.MessageID,
				SessionID: command.SessionID,
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}
	}()

	var notFirst bool
	var acc openai.ChatCompletionAccumulator

	for strm.Next() {
		// Check context before processing each chunk
		if err := ctx.Err(); err != nil {
			return
		}

		if !notFirst {
			notFirst = true
			events <- provider.Start{
				MessageID: command.MessageID,
				SessionID: command.SessionID,
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}

		chunk := strm.Current()
		if strm.Err() != nil {
			events <- provider.Error{
				Err:       strm.Err(),
				MessageID: command.MessageID,
				SessionID: command.SessionID,
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			events <- provider.Chunk{
				MessageID: command.MessageID,
				SessionID: command.SessionID,
				Delta:     chunk.Choices[0].Delta.Content,
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}
	}

	if err := strm.Err(); err != nil {
		events <- provider.Error{
			Err:       err,
			MessageID: command.MessageID,
			SessionID: command.SessionID,
			Timestamp: strfmt.DateTime(time.Now()),
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	// A stream that closes without a finish reason never completed, so the
	// partial accumulator is not a response.
	if !notFirst || !streamFinished(&acc.ChatCompletion) {
		events <- provider.Error{
			Err:       errTruncatedStream,
			MessageID: command.MessageID,
			SessionID: command.SessionID,
			Timestamp: strfmt.DateTime(time.Now()),
		}
		return
	}

	events <- completionToStreamEvent(&acc.ChatCompletion, command)
}

func streamFinished(chat *openai.ChatCompletion) bool {
	return len(chat.Choices) > 0 && chat.Choices[0].FinishReason != ""
}

func (p *Provider) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		events <- provider.Error{
			Err:       err,
			MessageID: command.MessageID,
			SessionID: command.SessionID,
			Timestamp: strfmt.DateTime(time.Now()),
		}
		return
	}

	events <- provider.Start{
		MessageID: command.MessageID,
		SessionID: command.SessionID,
		Timestamp: strfmt.DateTime(time.Now()),
	}
	events <- completionToStreamEvent(chat, command)
}

// messagesToOpenAI converts the agent's conversation view to openai chat
// messages. The responding agent's own past replies become assistant
// messages, everything else becomes user messages.
func messagesToOpenAI(agent, instructions string, thread []messages.Message) ([]openai.ChatCompletionMessageParamUnion, string) {
	result := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(instructions),
	}
	var user string
	for _, message := range thread {
		if message.Content == "" {
			continue
		}
		switch {
		case message.Sender.IsAgent() && message.Sender.Name == agent:
			result = append(result, openai.AssistantMessage(message.Content))
		default:
			if message.Sender.IsHuman() && message.Sender.Name != "" {
				user = message.Sender.Name
			}
			result = append(result, openai.UserMessageParts(openai.TextPart(message.Content)))
		}
	}
	return result, user
}

func completionToStreamEvent(chat *openai.ChatCompletion, command *provider.CompletionParams) provider.StreamEvent {
	var content string
	if len(chat.Choices) > 0 {
		content = chat.Choices[0].Message.Content
	}

	var usage gjson.Result
	if raw, err := json.Marshal(chat.Usage); err == nil {
		usage = gjson.ParseBytes(raw)
	}

	return provider.Response{
		MessageID: command.MessageID,
		SessionID: command.SessionID,
		Content:   content,
		Usage:     usage,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
