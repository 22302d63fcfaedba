package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/config"
)

// Dispatcher fans an ingestion event out to the configured channels.
// Unconfigured channels are skipped silently.
type Dispatcher struct {
	push  *OneSignalClient
	queue *QueuePublisher
}

// NewDispatcher constructs a Dispatcher from the notification config.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{}
	if cfg.OneSignalAppID != "" && cfg.OneSignalAPIKey != "" {
		d.push = NewOneSignalClient(cfg.OneSignalAppID, cfg.OneSignalAPIKey)
	}
	if cfg.AMQPURL != "" {
		d.queue = NewQueuePublisher(cfg.AMQPURL)
	}
	return d
}

// ArticlesIngested announces a completed ingestion run. Failures are logged
// and dropped.
func (d *Dispatcher) ArticlesIngested(ctx context.Context, source string, count int) {
	if d == nil || count <= 0 {
		return
	}
	event := ArticlesIngestedEvent{Source: source, Count: count, IngestedAt: time.Now().UTC()}

	if d.push != nil {
		title := "New articles to read"
		message := fmt.Sprintf("%d new articles arrived from %s", count, source)
		if errSend := d.push.Send(ctx, title, message, event); errSend != nil {
			log.WithError(errSend).Warn("push notification failed")
		}
	}
	if d.queue != nil {
		if errPublish := d.queue.Publish(ctx, ArticlesIngestedQueue, event); errPublish != nil {
			log.WithError(errPublish).Warn("queue publish failed")
		}
	}
}
