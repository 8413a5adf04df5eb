package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/prompt"
)

type fakeMessages struct {
	response *anthropic.Message
	err      error
	calls    []anthropic.MessageNewParams
}

func (f *fakeMessages) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestSystemBlocks_CacheBreakpointLimit(t *testing.T) {
	segments := []prompt.Segment{
		{Text: "static", Cacheable: true},
		{Text: "path", Cacheable: true},
		{Text: "loved", Cacheable: true},
		{Text: "volatile", Cacheable: false},
		{Text: "disliked", Cacheable: true},
		{Text: "read", Cacheable: true},
	}

	blocks := SystemBlocks(segments)
	require.Len(t, blocks, 6)

	var marked []string
	for _, b := range blocks {
		if b.CacheControl.Type != "" {
			marked = append(marked, b.Text)
		}
	}
	assert.Equal(t, []string{"path", "loved", "disliked", "read"}, marked)
}

func TestSystemBlocks_SkipsEmpty(t *testing.T) {
	blocks := SystemBlocks([]prompt.Segment{{Text: "a", Cacheable: true}, {Text: "  "}})
	require.Len(t, blocks, 1)
	assert.Equal(t, "a", blocks[0].Text)
}

func TestClient_Complete(t *testing.T) {
	fake := &fakeMessages{response: &anthropic.Message{
		Model: anthropic.Model(DefaultModel),
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Title: A\nAuthor: X\nWhy: y"},
		},
		Usage: anthropic.Usage{InputTokens: 100, OutputTokens: 20, CacheReadInputTokens: 80},
	}}
	c := NewClientWithMessages(fake, Config{})

	out, err := c.Complete(context.Background(), Request{
		System: []prompt.Segment{{Text: "sys", Cacheable: true}},
		User:   "User request: hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "Title: A\nAuthor: X\nWhy: y", out.Text)
	assert.Equal(t, int64(80), out.Usage.CacheReadInputTokens)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, int64(1024), fake.calls[0].MaxTokens)
	assert.Equal(t, anthropic.Model(DefaultModel), fake.calls[0].Model)
	require.Len(t, fake.calls[0].System, 1)
}

func TestClient_CompleteErrors(t *testing.T) {
	fake := &fakeMessages{err: errors.New("overloaded")}
	c := NewClientWithMessages(fake, Config{Model: "m", MaxTokens: 10})

	_, err := c.Complete(context.Background(), Request{User: "hi"})
	assert.ErrorContains(t, err, "overloaded")

	_, err = c.Complete(context.Background(), Request{User: " "})
	assert.Error(t, err)
	assert.Len(t, fake.calls, 1)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
