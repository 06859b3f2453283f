package publisher

import (
	"callbackbroker/interfaces"
	"callbackbroker/internals/models"
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
	"time"
)

// Publish sends one message and logs the outcome.
func Publish(ctx context.Context, client interfaces.Publisher, message models.Message, logger logrus.FieldLogger) error {
	if err := client.Publish(ctx, message); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"author":   message.Author,
		"contents": message.Contents,
	}).Info("message published")
	return nil
}

// PublishRepeatedly publishes count copies of message, one per interval,
// numbering the contents when count > 1. It stops early on ctx or on the
// first error.
func PublishRepeatedly(ctx context.Context, client interfaces.Publisher, message models.Message, count int, interval time.Duration, logger logrus.FieldLogger) error {
	if count <= 1 {
		return Publish(ctx, client, message, logger)
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 1; i <= count; i++ {
		numbered := models.Message{
			Author:   message.Author,
			Contents: fmt.Sprintf("%s #%d", message.Contents, i),
		}
		if err := Publish(ctx, client, numbered, logger); err != nil {
			return err
		}
		if i == count || tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
	return nil
}
