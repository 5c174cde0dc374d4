package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"blog-gen-ai-api/internal/workflow/completion"
)

type fakeChatModel struct {
	gotMessages []*schema.Message
	gotOptions  *model.Options
	reply       *schema.Message
	err         error
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.gotMessages = input
	m.gotOptions = model.GetCommonOptions(nil, opts...)
	return m.reply, m.err
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type staticSource struct {
	m   model.BaseChatModel
	err error
}

func (s staticSource) Get(context.Context, string) (model.BaseChatModel, error) { return s.m, s.err }

func TestEinoTransport_Complete(t *testing.T) {
	fm := &fakeChatModel{reply: schema.AssistantMessage("見出し", nil)}
	tr := NewEinoTransport("eino", staticSource{m: fm})

	text, err := tr.Complete(context.Background(), completion.Request{
		Messages: []completion.Message{completion.System("s"), completion.User("u"), completion.Assistant("a")},
		Options:  completion.Options{MaxTokens: completion.Int(64), Temperature: completion.Float(0.25)},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if text != "見出し" {
		t.Fatalf("text=%q", text)
	}
	if len(fm.gotMessages) != 3 || fm.gotMessages[0].Role != schema.System || fm.gotMessages[2].Role != schema.Assistant {
		t.Fatalf("messages=%v", fm.gotMessages)
	}
	if fm.gotOptions.MaxTokens == nil || *fm.gotOptions.MaxTokens != 64 {
		t.Fatalf("max tokens not passed")
	}
	if fm.gotOptions.Temperature == nil || *fm.gotOptions.Temperature != 0.25 {
		t.Fatalf("temperature not passed")
	}
}

func TestEinoTransport_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want completion.Kind
	}{
		{"429", errors.New("error, status code: 429, status: 429 Too Many Requests, message: slow down"), completion.KindRateLimited},
		{"rate code", errors.New("request failed: rate_limit_exceeded"), completion.KindRateLimited},
		{"401", errors.New("error, status code: 401, message: Incorrect API key"), completion.KindFatal},
		{"500", errors.New("error, status code: 500, message: internal"), completion.KindTransient},
		{"network", errors.New("dial tcp: connection refused"), completion.KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewEinoTransport("eino", staticSource{m: &fakeChatModel{err: tc.err}})
			_, err := tr.Complete(context.Background(), completion.Request{})
			if kind := completion.KindOf(err); kind != tc.want {
				t.Fatalf("kind=%s err=%v", kind, err)
			}
		})
	}
}

func TestEinoTransport_NilMessageIsMalformed(t *testing.T) {
	tr := NewEinoTransport("eino", staticSource{m: &fakeChatModel{}})
	_, err := tr.Complete(context.Background(), completion.Request{})
	if !completion.IsKind(err, completion.KindMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestEinoTransport_UnknownProviderIsFatal(t *testing.T) {
	tr := NewEinoTransport("eino", staticSource{err: errors.New("provider eino not found")})
	_, err := tr.Complete(context.Background(), completion.Request{})
	if !completion.IsKind(err, completion.KindFatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
}
