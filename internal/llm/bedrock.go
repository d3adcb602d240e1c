package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/tmc/langchaingo/llms"
)

// converser is the subset of the Bedrock runtime client used here.
type converser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockModel adapts the Bedrock Converse API to llms.Model.
type BedrockModel struct {
	client  converser
	modelID string
}

// Compile-time check that BedrockModel implements llms.Model.
var _ llms.Model = (*BedrockModel)(nil)

// NewBedrockModel creates a Bedrock-backed model for the given model ID.
func NewBedrockModel(client converser, modelID string) *BedrockModel {
	return &BedrockModel{client: client, modelID: modelID}
}

// Call implements llms.Model.
func (b *BedrockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, b, prompt, options...)
}

// GenerateContent implements llms.Model with a single Converse request.
func (b *BedrockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	input, err := b.converseInput(messages, opts)
	if err != nil {
		return nil, err
	}

	out, err := b.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock converse: response has no message")
	}

	var text strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}

	info := map[string]any{}
	if out.Usage != nil {
		info["InputTokens"] = int(aws.ToInt32(out.Usage.InputTokens))
		info["OutputTokens"] = int(aws.ToInt32(out.Usage.OutputTokens))
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        text.String(),
			StopReason:     string(out.StopReason),
			GenerationInfo: info,
		}},
	}, nil
}

func (b *BedrockModel) converseInput(messages []llms.MessageContent, opts llms.CallOptions) (*bedrockruntime.ConverseInput, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
	}

	for _, m := range messages {
		text := joinText(m.Parts)
		switch m.Role {
		case llms.ChatMessageTypeSystem:
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: text})
		case llms.ChatMessageTypeHuman, llms.ChatMessageTypeGeneric:
			input.Messages = append(input.Messages, textMessage(types.ConversationRoleUser, text))
		case llms.ChatMessageTypeAI:
			input.Messages = append(input.Messages, textMessage(types.ConversationRoleAssistant, text))
		default:
			return nil, fmt.Errorf("bedrock: unsupported message role %q", m.Role)
		}
	}
	if len(input.Messages) == 0 {
		return nil, errors.New("bedrock: at least one user message required")
	}

	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		inference := &types.InferenceConfiguration{}
		if opts.MaxTokens > 0 {
			inference.MaxTokens = aws.Int32(int32(opts.MaxTokens))
		}
		if opts.Temperature > 0 {
			inference.Temperature = aws.Float32(float32(opts.Temperature))
		}
		input.InferenceConfig = inference
	}

	return input, nil
}

func textMessage(role types.ConversationRole, text string) types.Message {
	return types.Message{
		Role:    role,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
	}
}

func joinText(parts []llms.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(llms.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}
