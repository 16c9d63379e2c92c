package jmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

// Config holds what a Client needs to reach one JMAP endpoint.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Strategy Strategy
	// Using lists the capabilities declared on every request.
	Using []string
}

// Client performs JMAP round trips. It keeps no state between calls and is
// safe for concurrent use.
type Client struct {
	cfg       Config
	transport Transport
	log       zerolog.Logger
}

// NewClient builds a client. A nil transport selects an HTTPTransport using
// cfg.Timeout.
func NewClient(cfg Config, transport Transport, log zerolog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("jmap endpoint is not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Strategy == nil {
		cfg.Strategy = ServerSide
	}
	if len(cfg.Using) == 0 {
		cfg.Using = []string{model.CapabilityCore, model.CapabilityTodo}
	}
	if transport == nil {
		transport = NewHTTPTransport(cfg.Timeout)
	}
	return &Client{
		cfg:       cfg,
		transport: transport,
		log:       log.With().Str("component", "jmap").Str("endpoint", cfg.Endpoint).Logger(),
	}, nil
}

func (c *Client) Strategy() Strategy { return c.cfg.Strategy }

// NewBatch starts a batch using the client's strategy and capabilities.
func (c *Client) NewBatch() *Batch {
	return NewBatch(c.cfg.Strategy, c.cfg.Using...)
}

// Invoke sends req and parses the reply. Exactly one round trip.
func (c *Client) Invoke(ctx context.Context, req *model.Request) (*model.ResponseEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	raw, err := c.transport.Post(ctx, c.cfg.Endpoint, body)
	if err != nil {
		c.log.Debug().Err(err).Int("calls", len(req.MethodCalls)).Msg("JMAP round trip failed")
		var statusErr *HTTPStatusError
		var transportErr *TransportError
		if errors.As(err, &statusErr) || errors.As(err, &transportErr) {
			return nil, err
		}
		return nil, &TransportError{Endpoint: c.cfg.Endpoint, Err: err}
	}

	env, err := ParseResponseEnvelope(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("Server sent a malformed response envelope")
		return nil, err
	}
	c.log.Debug().
		Int("calls", len(req.MethodCalls)).
		Int("responses", len(env.MethodResponses)).
		Dur("elapsed", time.Since(start)).
		Msg("JMAP round trip")
	return env, nil
}

// Do builds b and runs it through its strategy, which may take more than one
// round trip.
func (c *Client) Do(ctx context.Context, b *Batch) (*Results, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	return b.Strategy().Execute(ctx, c, req)
}

// Session performs the discovery call.
func (c *Client) Session(ctx context.Context) (*model.Session, error) {
	b := c.NewBatch()
	if err := b.Add(model.MethodCoreGetSession, model.Arguments{}, "s0"); err != nil {
		return nil, err
	}
	results, err := c.Do(ctx, b)
	if err != nil {
		return nil, err
	}
	var session model.Session
	if err := results.Decode("s0", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ParseResponseEnvelope decodes raw into a response envelope, requiring
// methodResponses to be an array of [string, object, string] triples.
func ParseResponseEnvelope(raw []byte) (*model.ResponseEnvelope, error) {
	var wire struct {
		MethodResponses *[]json.RawMessage `json:"methodResponses"`
		SessionState    string             `json:"sessionState"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &MalformedResponseError{Reason: "payload is not a JSON object", Err: err}
	}
	if wire.MethodResponses == nil {
		return nil, &MalformedResponseError{Reason: "missing methodResponses"}
	}

	env := &model.ResponseEnvelope{
		MethodResponses: make([]model.Response, 0, len(*wire.MethodResponses)),
		SessionState:    wire.SessionState,
	}
	for i, item := range *wire.MethodResponses {
		var resp model.Response
		if err := json.Unmarshal(item, &resp); err != nil {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("methodResponses[%d]", i), Err: err}
		}
		if resp.Name == "" || resp.CallID == "" {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("methodResponses[%d]: empty method name or call id", i)}
		}
		env.MethodResponses = append(env.MethodResponses, resp)
	}
	return env, nil
}
