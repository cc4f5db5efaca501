package fcm

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// messagingAPI is the subset of *messaging.Client the relay calls.
type messagingAPI interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	api     messagingAPI
	timeout time.Duration
	log     zerolog.Logger
}

type Config struct {
	CredentialsFile string
	ProjectID       string
	// SendTimeout bounds every provider call.
	SendTimeout time.Duration
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	c := newClient(messagingClient, cfg.SendTimeout, log)
	c.log.Info().Msg("Client initialized successfully")
	return c, nil
}

func newClient(api messagingAPI, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		api:     api,
		timeout: timeout,
		log:     log.With().Str("component", "FCM").Logger(),
	}
}

// Notification contains the data to send in a push notification
type Notification struct {
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string
	// Priority is "normal" or "high".
	Priority    string
	ClickAction string
}

func (n Notification) android() *messaging.AndroidConfig {
	cfg := &messaging.AndroidConfig{Priority: PriorityNormal}
	if n.Priority == PriorityHigh {
		cfg.Priority = PriorityHigh
	}
	if n.ClickAction != "" {
		cfg.Notification = &messaging.AndroidNotification{ClickAction: n.ClickAction}
	}
	return cfg
}

func (n Notification) apns() *messaging.APNSConfig {
	priority := "5"
	if n.Priority == PriorityHigh {
		priority = "10"
	}
	return &messaging.APNSConfig{Headers: map[string]string{"apns-priority": priority}}
}

func (n Notification) webpush() *messaging.WebpushConfig {
	cfg := &messaging.WebpushConfig{
		Notification: &messaging.WebpushNotification{
			Title: n.Title,
			Body:  n.Body,
			Image: n.ImageURL,
		},
	}
	if n.ClickAction != "" {
		cfg.FCMOptions = &messaging.WebpushFCMOptions{Link: n.ClickAction}
	}
	return cfg
}

func (n Notification) notification() *messaging.Notification {
	return &messaging.Notification{
		Title:    n.Title,
		Body:     n.Body,
		ImageURL: n.ImageURL,
	}
}

// Send delivers a notification to one device token and returns the provider message id.
func (c *Client) Send(ctx context.Context, token string, n Notification) (string, error) {
	message := &messaging.Message{
		Token:        token,
		Notification: n.notification(),
		Data:         n.Data,
		Android:      n.android(),
		APNS:         n.apns(),
		Webpush:      n.webpush(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id, err := c.api.Send(ctx, message)
	if err != nil {
		return "", classify(ctx, err)
	}
	return id, nil
}

// SendToTopic delivers a notification to every device subscribed to topic.
func (c *Client) SendToTopic(ctx context.Context, topic string, n Notification) (string, error) {
	message := &messaging.Message{
		Topic:        topic,
		Notification: n.notification(),
		Data:         n.Data,
		Android:      n.android(),
		APNS:         n.apns(),
		Webpush:      n.webpush(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id, err := c.api.Send(ctx, message)
	if err != nil {
		return "", classify(ctx, err)
	}
	c.log.Info().Str("topic", topic).Str("message_id", id).Msg("Topic message sent")
	return id, nil
}

type SendResult struct {
	Token     string
	MessageID string
	Err       error
}

type MulticastResult struct {
	SuccessCount  int
	FailureCount  int
	Responses     []SendResult
	InvalidTokens []string
}

// SendMulticast sends one notification to many tokens with a result per token.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, n Notification) (*MulticastResult, error) {
	if len(tokens) == 0 {
		return &MulticastResult{}, nil
	}

	message := &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: n.notification(),
		Data:         n.Data,
		Android:      n.android(),
		APNS:         n.apns(),
		Webpush:      n.webpush(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.api.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, classify(ctx, err)
	}

	result := &MulticastResult{
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
		Responses:    make([]SendResult, 0, len(response.Responses)),
	}
	for i, resp := range response.Responses {
		r := SendResult{Token: tokens[i], MessageID: resp.MessageID}
		if !resp.Success {
			gerr := &GatewayError{Code: CodeUnknown, Message: "send failed"}
			if resp.Error != nil {
				gerr = classify(ctx, resp.Error)
			}
			r.Err = gerr
			if IsInvalidTokenCode(gerr.Code) {
				result.InvalidTokens = append(result.InvalidTokens, tokens[i])
			}
		}
		result.Responses = append(result.Responses, r)
	}

	c.log.Info().Int("success", result.SuccessCount).Int("failure", result.FailureCount).Msg("Multicast sent")
	return result, nil
}

type TopicError struct {
	Token  string
	Reason string
}

type TopicResult struct {
	SuccessCount int
	FailureCount int
	Errors       []TopicError
}

// SubscribeToTopic adds tokens to topic.
func (c *Client) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	return c.manageTopic(ctx, tokens, topic, c.api.SubscribeToTopic)
}

// UnsubscribeFromTopic removes tokens from topic.
func (c *Client) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	return c.manageTopic(ctx, tokens, topic, c.api.UnsubscribeFromTopic)
}

func (c *Client) manageTopic(
	ctx context.Context,
	tokens []string,
	topic string,
	call func(context.Context, []string, string) (*messaging.TopicManagementResponse, error),
) (*TopicResult, error) {
	if len(tokens) == 0 {
		return &TopicResult{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := call(ctx, tokens, topic)
	if err != nil {
		return nil, classify(ctx, err)
	}

	result := &TopicResult{SuccessCount: response.SuccessCount, FailureCount: response.FailureCount}
	for _, e := range response.Errors {
		te := TopicError{Reason: e.Reason}
		if e.Index >= 0 && e.Index < len(tokens) {
			te.Token = tokens[e.Index]
		}
		result.Errors = append(result.Errors, te)
	}
	return result, nil
}
