package messaging

import (
	"context"
	"time"
)

type PushClient struct {
	gw gateway
}

func NewPushClient(url, apiKey string, timeout time.Duration) *PushClient {
	return &PushClient{gw: newGateway(url, apiKey, timeout)}
}

func (c *PushClient) Configured() bool { return c.gw.configured() }

type PushMessage struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (c *PushClient) Send(ctx context.Context, msg *PushMessage) error {
	return c.gw.post(ctx, msg)
}
