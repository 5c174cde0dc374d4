package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/workflow/completion"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestProxy(t *testing.T, rt roundTripperFunc) *ProxyTransport {
	t.Helper()
	tr, err := NewProxyTransport("proxy", config.ProviderConfig{BaseURL: "http://proxy.local/"}, &http.Client{Transport: rt})
	if err != nil {
		t.Fatalf("NewProxyTransport() error: %v", err)
	}
	return tr
}

func TestProxyTransport_Success(t *testing.T) {
	var gotURL string
	var gotBody map[string]any
	tr := newTestProxy(t, func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		if err := json.NewDecoder(req.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"content":"本文"}`), nil
	})

	text, err := tr.Complete(context.Background(), completion.Request{
		Messages: []completion.Message{completion.System("sys"), completion.User("hi")},
		Options:  completion.Options{MaxTokens: completion.Int(100), Temperature: completion.Float(0.3)},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if text != "本文" {
		t.Fatalf("text=%q", text)
	}
	if gotURL != "http://proxy.local/api/completion" {
		t.Fatalf("url=%s", gotURL)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages=%v", gotBody["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "sys" {
		t.Fatalf("first message=%v", first)
	}
	opts, _ := gotBody["options"].(map[string]any)
	if opts["maxTokens"] != float64(100) || opts["temperature"] != 0.3 {
		t.Fatalf("options=%v", opts)
	}
	if _, ok := opts["presencePenalty"]; ok {
		t.Fatalf("unset option serialized: %v", opts)
	}
}

func TestProxyTransport_MissingContentIsMalformed(t *testing.T) {
	for _, body := range []string{`{}`, `not json`, ``} {
		tr := newTestProxy(t, func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, body), nil
		})
		_, err := tr.Complete(context.Background(), completion.Request{})
		if !completion.IsKind(err, completion.KindMalformed) {
			t.Fatalf("body %q: expected malformed, got %v", body, err)
		}
	}
}

func TestProxyTransport_ErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   completion.Kind
	}{
		{"rate limit code", http.StatusServiceUnavailable, `{"error":"slow down","details":{"code":"rate_limit_exceeded"}}`, completion.KindRateLimited},
		{"429", http.StatusTooManyRequests, `{"error":"too many"}`, completion.KindRateLimited},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, completion.KindFatal},
		{"config code", http.StatusInternalServerError, `{"error":"x","details":{"code":"invalid_api_key"}}`, completion.KindFatal},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, completion.KindTransient},
		{"plain text", http.StatusBadGateway, `upstream down`, completion.KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTestProxy(t, func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})
			_, err := tr.Complete(context.Background(), completion.Request{})
			var ce *completion.Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *completion.Error, got %v", err)
			}
			if ce.Kind != tc.want || ce.StatusCode != tc.status {
				t.Fatalf("got kind=%s status=%d", ce.Kind, ce.StatusCode)
			}
		})
	}
}

func TestProxyTransport_NetworkErrorIsTransient(t *testing.T) {
	tr := newTestProxy(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := tr.Complete(context.Background(), completion.Request{})
	if !completion.IsKind(err, completion.KindTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestProxyTransport_ContextCancelled(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	tr := newTestProxy(t, func(req *http.Request) (*http.Response, error) {
		cancelFn()
		return nil, req.Context().Err()
	})
	_, err := tr.Complete(ctx, completion.Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewProxyTransport_RequiresBaseURL(t *testing.T) {
	if _, err := NewProxyTransport("proxy", config.ProviderConfig{}, nil); err == nil {
		t.Fatalf("expected error for empty base_url")
	}
}
