package kafkax

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck dials the first reachable broker and asks for cluster metadata.
func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return fmt.Errorf("no kafka brokers configured")
		}
		var lastErr error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			_, err = conn.Brokers()
			_ = conn.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return nil
		}
		return fmt.Errorf("kafka not reachable: %w", lastErr)
	}
}
