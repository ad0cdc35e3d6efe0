package service

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"fulfillment-service/internal/marketplace"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// resourcePattern matches the marketplace notification resource paths
// the pipeline reacts to.
var resourcePattern = regexp.MustCompile(`^/(orders|shipments)/(\d+)$`)

// notificationStore is the slice of the store the notification path
// touches.
type notificationStore interface {
	TouchShipment(ctx context.Context, shipmentID, orderID string, at time.Time) error
}

// notificationMarketAPI resolves notification resources to shipments.
type notificationMarketAPI interface {
	FetchOrder(ctx context.Context, orderID string) (*marketplace.Order, error)
	FetchShipment(ctx context.Context, shipmentID string) (*marketplace.Shipment, error)
}

// cancellationApplier propagates marketplace cancellations to the
// pick ledger.
type cancellationApplier interface {
	ApplyCancellation(ctx context.Context, shipmentID, reason string) error
}

// shipmentScanner triggers a full resolution pass.
type shipmentScanner interface {
	ScanShipment(ctx context.Context, shipmentID string) (*models.ShipmentDetail, bool, error)
}

// NotificationService handles marketplace push notifications. Each
// notification is acknowledged cheaply with a touch write; the full
// resolution runs in the background so the webhook response never
// waits on the upstream API.
type NotificationService struct {
	store     notificationStore
	market    notificationMarketAPI
	picking   cancellationApplier
	scanner   shipmentScanner
	logger    *zap.Logger
	scanAsync bool
}

// NewNotificationService creates the notification handler.
func NewNotificationService(store notificationStore, market notificationMarketAPI, picking cancellationApplier, scanner shipmentScanner) *NotificationService {
	return &NotificationService{
		store:     store,
		market:    market,
		picking:   picking,
		scanner:   scanner,
		logger:    util.GetLogger(),
		scanAsync: true,
	}
}

// Handle processes one notification. Unrecognized resources are
// dropped, not errored: the marketplace pushes many topics this
// service never subscribes to explicitly.
func (n *NotificationService) Handle(ctx context.Context, notif models.MarketplaceNotification) error {
	ctx, span := util.StartSpan(ctx, "NotificationService.Handle")
	defer span.End()

	kind, id, ok := parseResource(notif.Resource)
	if !ok {
		util.NotificationsProcessedTotal.WithLabelValues("ignored").Inc()
		n.logger.Debug("Ignoring notification",
			zap.String("topic", notif.Topic),
			zap.String("resource", notif.Resource))
		return nil
	}

	shipmentID, orderID, err := n.resolveShipmentID(ctx, kind, id)
	if err != nil {
		util.NotificationsProcessedTotal.WithLabelValues("failed").Inc()
		return err
	}
	if shipmentID == "" {
		// An order with no shipment yet; a later notification will
		// carry it.
		util.NotificationsProcessedTotal.WithLabelValues("no_shipment").Inc()
		return nil
	}

	if err := n.store.TouchShipment(ctx, shipmentID, orderID, time.Now()); err != nil {
		util.NotificationsProcessedTotal.WithLabelValues("failed").Inc()
		return err
	}

	n.checkCancellation(ctx, shipmentID)

	if n.scanAsync {
		go n.refresh(shipmentID)
	} else {
		n.refresh(shipmentID)
	}

	util.NotificationsProcessedTotal.WithLabelValues("processed").Inc()
	return nil
}

// resolveShipmentID maps the notification resource to a shipment id,
// following order → shipping.id when the resource is an order.
func (n *NotificationService) resolveShipmentID(ctx context.Context, kind, id string) (shipmentID, orderID string, err error) {
	if kind == "shipments" {
		return id, "", nil
	}

	order, err := n.market.FetchOrder(ctx, id)
	if err != nil {
		return "", "", err
	}
	if order.Shipping.ID == 0 {
		return "", id, nil
	}
	return strconv.FormatInt(order.Shipping.ID, 10), id, nil
}

// checkCancellation propagates a cancelled upstream status to the
// ledger. Status check failures are logged only; the refresh pass
// will see the status again.
func (n *NotificationService) checkCancellation(ctx context.Context, shipmentID string) {
	shipment, err := n.market.FetchShipment(ctx, shipmentID)
	if err != nil {
		n.logger.Debug("Status check on notification failed",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
		return
	}
	if shipment.Status != cancelledShipmentStatus {
		return
	}
	if err := n.picking.ApplyCancellation(ctx, shipmentID, "cancelled by marketplace notification"); err != nil {
		n.logger.Warn("Cancellation propagation failed",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
	}
}

// refresh runs the full scan pipeline for the shipment with its own
// timeout, detached from the webhook request context.
func (n *NotificationService) refresh(shipmentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, _, err := n.scanner.ScanShipment(ctx, shipmentID); err != nil {
		n.logger.Warn("Background refresh failed",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
	}
}

// parseResource extracts the resource kind and numeric id.
func parseResource(resource string) (kind, id string, ok bool) {
	m := resourcePattern.FindStringSubmatch(resource)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
