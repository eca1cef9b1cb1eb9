package messaging

import (
	"context"
	"time"
)

type SMSClient struct {
	gw gateway
}

func NewSMSClient(url, apiKey string, timeout time.Duration) *SMSClient {
	return &SMSClient{gw: newGateway(url, apiKey, timeout)}
}

func (c *SMSClient) Configured() bool { return c.gw.configured() }

// Send delivers a plain-text SMS to an E.164 number.
func (c *SMSClient) Send(ctx context.Context, to, text string) error {
	return c.gw.post(ctx, map[string]string{"to": to, "body": text})
}
