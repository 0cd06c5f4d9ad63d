package llm

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	gotMessages []*schema.Message
	gotOptions  *einomodel.Options
	reply       string
	err         error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.gotMessages = input
	f.gotOptions = einomodel.GetCommonOptions(nil, opts...)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestEinoChatClient_MapsMessagesAndOptions(t *testing.T) {
	fake := &fakeChatModel{reply: "Final Answer: 42"}
	c := NewEinoChatClient("groq", "llama", fake)

	out, err := c.ChatWithContext(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "q"},
	}, GenerateOptions{Temperature: 0.5, MaxTokens: 64, Stop: []string{"\nObservation:"}})
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: 42", out)

	require.Len(t, fake.gotMessages, 2)
	assert.Equal(t, schema.System, fake.gotMessages[0].Role)
	assert.Equal(t, schema.User, fake.gotMessages[1].Role)
	require.NotNil(t, fake.gotOptions.Temperature)
	assert.InDelta(t, 0.5, *fake.gotOptions.Temperature, 1e-6)
	require.NotNil(t, fake.gotOptions.MaxTokens)
	assert.Equal(t, 64, *fake.gotOptions.MaxTokens)
	assert.Equal(t, []string{"\nObservation:"}, fake.gotOptions.Stop)
	assert.Equal(t, "groq", c.Provider())
	assert.Equal(t, "llama", c.Model())
}

func TestEinoChatClient_Error(t *testing.T) {
	c := NewEinoChatClient("p", "m", &fakeChatModel{err: errors.New("503")})
	_, err := c.Chat([]Message{{Role: "user", Content: "q"}}, GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
