// Package ooba is a client for the oobabooga text-generation-webui streaming
// API. Each generation request opens a websocket to /api/v1/stream, sends the
// prompt with sampling parameters, and consumes text_stream events until the
// server signals stream_end.
package ooba

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/gorilla/websocket"
)

const streamPath = "/api/v1/stream"

// Params are the sampling parameters sent with every generation request.
type Params struct {
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	StoppingStrings   []string
}

// Client talks to a single text-generation backend.
type Client struct {
	streamURL string
	params    Params
}

// NewClient builds a client for the backend at baseURL (e.g.
// ws://localhost:5005).
func NewClient(baseURL string, params Params) *Client {
	return &Client{
		streamURL: strings.TrimRight(baseURL, "/") + streamPath,
		params:    params,
	}
}

// URL returns the stream endpoint this client dials.
func (c *Client) URL() string {
	return c.streamURL
}

// TryConnect dials the backend and immediately disconnects. Used at startup
// to fail fast on a bad URL or an unreachable server.
func (c *Client) TryConnect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL, nil)
	if err != nil {
		return fmt.Errorf("connect to text backend %s: %w", c.streamURL, err)
	}
	return conn.Close()
}

// request is the wire format of a generation request. Fields beyond the
// configurable ones are pinned to values that suit chat completion.
type request struct {
	Prompt            string   `json:"prompt"`
	MaxNewTokens      int      `json:"max_new_tokens"`
	DoSample          bool     `json:"do_sample"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	TypicalP          float64  `json:"typical_p"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	TopK              int      `json:"top_k"`
	MinLength         int      `json:"min_length"`
	NoRepeatNgramSize int      `json:"no_repeat_ngram_size"`
	NumBeams          int      `json:"num_beams"`
	EarlyStopping     bool     `json:"early_stopping"`
	Seed              int      `json:"seed"`
	AddBOSToken       bool     `json:"add_bos_token"`
	TruncationLength  int      `json:"truncation_length"`
	BanEOSToken       bool     `json:"ban_eos_token"`
	SkipSpecialTokens bool     `json:"skip_special_tokens"`
	StoppingStrings   []string `json:"stopping_strings"`
}

type event struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

func (c *Client) newRequest(prompt string) request {
	stopping := c.params.StoppingStrings
	if stopping == nil {
		stopping = []string{}
	}
	return request{
		Prompt:            prompt,
		MaxNewTokens:      c.params.MaxNewTokens,
		DoSample:          true,
		Temperature:       c.params.Temperature,
		TopP:              c.params.TopP,
		TypicalP:          1.0,
		RepetitionPenalty: c.params.RepetitionPenalty,
		TopK:              40,
		NumBeams:          1,
		Seed:              -1,
		AddBOSToken:       true,
		TruncationLength:  2048,
		SkipSpecialTokens: true,
		StoppingStrings:   stopping,
	}
}

// stream runs one generation request, calling onText for every token chunk.
// onText returning false stops the stream early.
func (c *Client) stream(ctx context.Context, prompt string, onText func(string) bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial text backend: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(c.newRequest(prompt)); err != nil {
		return fmt.Errorf("send generation request: %w", err)
	}

	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read generation stream: %w", err)
		}
		switch ev.Event {
		case "text_stream":
			if !onText(ev.Text) {
				return nil
			}
		case "stream_end":
			return nil
		}
	}
}

// RequestAsString generates a complete response as one string.
func (c *Client) RequestAsString(ctx context.Context, prompt string) (string, error) {
	var b strings.Builder
	if err := c.stream(ctx, prompt, func(text string) bool {
		b.WriteString(text)
		return true
	}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RequestBySentence generates a response and yields it one sentence at a
// time, as the backend produces tokens. The sequence ends after stream_end
// or yields a single terminal error.
func (c *Client) RequestBySentence(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		splitter := NewSentenceSplitter()
		stopped := false
		err := c.stream(ctx, prompt, func(text string) bool {
			for _, sentence := range splitter.Feed(text) {
				if !yield(sentence, nil) {
					stopped = true
					return false
				}
			}
			return true
		})
		if stopped {
			return
		}
		if err != nil {
			yield("", err)
			return
		}
		if tail := splitter.Flush(); tail != "" {
			yield(tail, nil)
		}
	}
}
