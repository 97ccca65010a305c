package sink

import (
	"context"
	"fmt"

	"github.com/JakeFAU/mixtape-crawler/internal/crawler"
)

type closer interface {
	Close() error
}

// Publish sends each envelope through a Publisher.
type Publish struct {
	pub   crawler.Publisher
	topic string
}

var _ crawler.EnvelopeWriter = (*Publish)(nil)

// NewPublish builds a Publish writer for topic.
func NewPublish(pub crawler.Publisher, topic string) *Publish {
	return &Publish{pub: pub, topic: topic}
}

// Write publishes env.
func (p *Publish) Write(ctx context.Context, env crawler.RecordEnvelope) error {
	if _, err := p.pub.Publish(ctx, p.topic, env); err != nil {
		return fmt.Errorf("publish %s: %w", env.Record.DetailURL, err)
	}
	return nil
}

// Close closes the publisher when it supports closing.
func (p *Publish) Close(context.Context) error {
	c, ok := p.pub.(closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
