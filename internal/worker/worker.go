package worker

import (
	"context"
	"encoding/json"
	"log"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"

	"github.com/segmentio/kafka-go"
)

// NotificationWorker consumes marketplace push notifications from the
// notifications topic and feeds them through the notification
// pipeline.
type NotificationWorker struct {
	consumer      *broker.Consumer
	notifications *service.NotificationService
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifications *service.NotificationService) *NotificationWorker {
	return &NotificationWorker{
		consumer:      consumer,
		notifications: notifications,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var notif models.MarketplaceNotification
		if err := json.Unmarshal(msg.Value, &notif); err != nil {
			// Commit and move on; a bad payload never parses better
			// on redelivery.
			log.Printf("Failed to unmarshal notification: %v", err)
			return nil
		}

		if err := w.notifications.Handle(ctx, notif); err != nil {
			log.Printf("Failed to process notification %s: %v", notif.Resource, err)
		}
		return nil
	})
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}
