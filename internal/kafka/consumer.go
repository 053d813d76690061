package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"irrigation-control/internal/engine"
	"irrigation-control/internal/logging"
	"irrigation-control/internal/models"
)

type Config struct {
	Broker  string
	Topic   string
	GroupID string
}

// Consumer reads uplink envelopes from the network server's topic and
// feeds them to the telemetry merge. Events arrive at-most-once with no
// ordering guarantee; the store's event-time comparator absorbs
// duplicates and stragglers.
type Consumer struct {
	reader *kafka.Reader
	store  *engine.Store
	logger *logging.Logger
	cancel context.CancelFunc
}

func NewConsumer(cfg Config, store *engine.Store, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Broker},
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{reader: reader, store: store, logger: logger}
}

func (c *Consumer) Start(wg *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Uplink consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var ev models.UplinkEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				c.logger.Errorf("Unmarshal uplink failed: %v", err)
				continue
			}
			if ev.DeviceID == "" {
				c.logger.Errorf("Invalid uplink: missing device_id")
				continue
			}

			if err := c.store.ApplyUplink(ev); err != nil {
				c.logger.Warnf("Uplink for device %s not applied: %v", ev.DeviceID, err)
				continue
			}
			c.logger.Debugf("Applied uplink for device %s (%d status updates, telemetry=%t)",
				ev.DeviceID, len(ev.StatusUpdates), ev.Telemetry != nil)
		}
	}()
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Close consumer failed: %v", err)
	}
}
