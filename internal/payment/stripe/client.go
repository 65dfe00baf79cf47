package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/obaraelijah/LeafLine-Server/internal/payment"
	"github.com/obaraelijah/LeafLine-Server/pkg/httpclient"
)

const (
	providerName  = "stripe"
	intentsPath   = "/v1/payment_intents"
	tracerName    = "github.com/obaraelijah/LeafLine-Server/internal/payment/stripe"
	maxResponseSz = 1 << 20
)

// Config holds Stripe client configuration.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	// RequestsPerSecond and Burst throttle outbound calls.
	RequestsPerSecond float64
	Burst             int
	Breaker           httpclient.CircuitBreakerConfig
}

// Client creates PaymentIntents through the Stripe REST API. Requests are
// never retried here: a retry after a lost response could create a second
// intent unless the caller supplied an idempotency key.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	key     string
	logger  *slog.Logger
}

var _ payment.Gateway = (*Client)(nil)

// New creates a Stripe client.
func New(cfg Config, logger *slog.Logger) *Client {
	hc := httpclient.DefaultConfig()
	hc.MaxRetries = 0
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	hc.RequestsPerSecond = cfg.RequestsPerSecond
	hc.Burst = cfg.Burst

	breaker := cfg.Breaker
	if breaker.Name == "" {
		breaker = httpclient.DefaultCircuitBreakerConfig(providerName)
	}

	return &Client{
		http:    httpclient.NewCircuitBreakerClient(httpclient.New(hc), breaker, logger),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.SecretKey,
		logger:  logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return providerName
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

// CreatePaymentIntent posts a form-encoded PaymentIntent request.
func (c *Client) CreatePaymentIntent(ctx context.Context, in payment.IntentInput) (_ *payment.Intent, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stripe.create_payment_intent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("payment.amount_minor", in.AmountMinorUnits),
			attribute.String("payment.currency", in.Currency),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.key)
	if in.IdempotencyKey != "" {
		headers.Set("Idempotency-Key", in.IdempotencyKey)
	}

	resp, err := c.http.Post(ctx, c.baseURL+intentsPath, "application/x-www-form-urlencoded",
		strings.NewReader(encodeIntentForm(in)), headers)
	if err != nil {
		return nil, c.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSz))
	if err != nil {
		return nil, payment.Unavailable(providerName, "read response", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejection(resp.StatusCode, body)
	}

	var ir intentResponse
	if err := json.Unmarshal(body, &ir); err != nil || ir.ID == "" || ir.ClientSecret == "" {
		return nil, payment.Rejected(providerName, "", "malformed payment intent response")
	}

	c.logger.InfoContext(ctx, "payment intent created",
		slog.String("payment_intent_id", ir.ID),
		slog.String("intent_status", ir.Status),
		slog.Int64("amount_minor", in.AmountMinorUnits),
	)
	return &payment.Intent{ClientSecret: ir.ClientSecret, Reference: ir.ID}, nil
}

func (c *Client) classifyTransportError(ctx context.Context, err error) error {
	var se *httpclient.StatusError
	switch {
	case errors.As(err, &se):
		msg := fmt.Sprintf("provider returned status %d", se.StatusCode)
		if se.StatusCode == http.StatusTooManyRequests {
			msg = "provider rate limited the request"
		}
		return payment.Unavailable(providerName, msg, err)
	case errors.Is(err, httpclient.ErrCircuitOpen), errors.Is(err, httpclient.ErrTooManyRequests):
		return payment.Unavailable(providerName, "circuit open", err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return payment.Unavailable(providerName, "request timed out", err)
	default:
		return payment.Unavailable(providerName, "request failed", err)
	}
}

func rejection(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
		return payment.Rejected(providerName, "", fmt.Sprintf("request rejected with status %d", status))
	}
	code := er.Error.Code
	if er.Error.DeclineCode != "" {
		code = er.Error.DeclineCode
	}
	return payment.Rejected(providerName, code, er.Error.Message)
}

// encodeIntentForm builds the request body. url.Values encodes keys in sorted
// order, so equal inputs give equal bodies.
func encodeIntentForm(in payment.IntentInput) string {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(in.AmountMinorUnits, 10))
	form.Set("currency", in.Currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range in.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	return form.Encode()
}
