package service

import (
	"context"
	"time"

	"fulfillment-service/internal/marketplace"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// cancelledShipmentStatus is the marketplace status that blocks
// dispatch.
const cancelledShipmentStatus = "cancelled"

// pickLedgerStore is the persisted pick ledger.
type pickLedgerStore interface {
	PickRecords(ctx context.Context, shipmentID string) ([]models.PickRecord, error)
	SeedPickRecords(ctx context.Context, records []models.PickRecord) error
	MarkShipmentPacked(ctx context.Context, shipmentID, operator string, at time.Time) (int64, error)
	MarkShipmentDispatched(ctx context.Context, shipmentID, carrier, dispatchType, operator string, at time.Time) (int64, error)
	MarkShipmentCancelled(ctx context.Context, shipmentID string, at time.Time) (int64, error)
}

// shipmentCacheReader reads cached shipment details for seeding and
// the dispatch-time cancellation check.
type shipmentCacheReader interface {
	GetShipment(ctx context.Context, shipmentID string) (*models.ShipmentDetail, error)
}

// shipmentStatusChecker fetches live shipment status from the
// marketplace.
type shipmentStatusChecker interface {
	FetchShipment(ctx context.Context, shipmentID string) (*marketplace.Shipment, error)
}

// pickEventPublisher emits ledger lifecycle events.
type pickEventPublisher interface {
	PublishShipmentPacked(ctx context.Context, shipmentID, operator string) error
	PublishShipmentDispatched(ctx context.Context, shipmentID, operator, carrier, dispatchType string) error
	PublishShipmentCancelled(ctx context.Context, shipmentID, reason string) error
}

// PickingService owns the pick ledger state machine. Transitions are
// monotonic per shipment: pending → packed → dispatched, with
// cancellation reachable from pending or packed only. Guards run here
// against the whole shipment's rows; the store's state-conditioned
// updates back them at the database level.
type PickingService struct {
	ledger    pickLedgerStore
	cache     shipmentCacheReader
	market    shipmentStatusChecker
	publisher pickEventPublisher
	logger    *zap.Logger
}

// NewPickingService creates the pick ledger service.
func NewPickingService(ledger pickLedgerStore, cache shipmentCacheReader, market shipmentStatusChecker, publisher pickEventPublisher) *PickingService {
	return &PickingService{
		ledger:    ledger,
		cache:     cache,
		market:    market,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// MarkPacked moves every line of the shipment from pending to packed.
// A shipment with no ledger rows is seeded from its cached detail
// first; an unresolved shipment cannot be packed.
func (p *PickingService) MarkPacked(ctx context.Context, shipmentID, operator string) error {
	ctx, span := util.StartSpan(ctx, "PickingService.MarkPacked")
	defer span.End()

	records, err := p.ledger.PickRecords(ctx, shipmentID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		if err := p.seedFromCache(ctx, shipmentID); err != nil {
			util.PickActionRejectedTotal.WithLabelValues("pack", "unresolved").Inc()
			return err
		}
	} else if reason := packRejection(records); reason != "" {
		util.PickActionRejectedTotal.WithLabelValues("pack", reason).Inc()
		return models.NewDomainError("shipment %s cannot be packed: %s", shipmentID, reason)
	}

	affected, err := p.ledger.MarkShipmentPacked(ctx, shipmentID, operator, time.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		util.PickActionRejectedTotal.WithLabelValues("pack", "no_pending_lines").Inc()
		return models.NewDomainError("shipment %s has no pending lines to pack", shipmentID)
	}

	util.ShipmentsPackedTotal.Inc()
	p.logger.Info("Shipment packed",
		zap.String("shipment_id", shipmentID),
		zap.String("operator", operator),
		zap.Int64("lines", affected))

	if p.publisher != nil {
		if err := p.publisher.PublishShipmentPacked(ctx, shipmentID, operator); err != nil {
			p.logger.Warn("Packed event publish failed",
				zap.String("shipment_id", shipmentID),
				zap.Error(err))
		}
	}
	return nil
}

// MarkDispatched moves every line from packed to dispatched. Dispatch
// refuses cancelled shipments: the cached status is checked first,
// then the live marketplace status when reachable. A cancellation
// discovered here is applied to the ledger before refusing.
func (p *PickingService) MarkDispatched(ctx context.Context, shipmentID, carrier, dispatchType, operator string) error {
	ctx, span := util.StartSpan(ctx, "PickingService.MarkDispatched")
	defer span.End()

	records, err := p.ledger.PickRecords(ctx, shipmentID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		util.PickActionRejectedTotal.WithLabelValues("dispatch", "no_ledger").Inc()
		return &models.NotFoundError{Kind: "pick ledger", ID: shipmentID}
	}
	if reason := dispatchRejection(records); reason != "" {
		util.PickActionRejectedTotal.WithLabelValues("dispatch", reason).Inc()
		return models.NewDomainError("shipment %s cannot be dispatched: %s", shipmentID, reason)
	}

	if p.shipmentCancelledUpstream(ctx, shipmentID) {
		if err := p.ApplyCancellation(ctx, shipmentID, "cancelled at dispatch check"); err != nil {
			p.logger.Warn("Cancellation write failed",
				zap.String("shipment_id", shipmentID),
				zap.Error(err))
		}
		util.PickActionRejectedTotal.WithLabelValues("dispatch", "cancelled_upstream").Inc()
		return models.NewDomainError("shipment %s is cancelled and cannot be dispatched", shipmentID)
	}

	affected, err := p.ledger.MarkShipmentDispatched(ctx, shipmentID, carrier, dispatchType, operator, time.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		util.PickActionRejectedTotal.WithLabelValues("dispatch", "no_packed_lines").Inc()
		return models.NewDomainError("shipment %s has no packed lines to dispatch", shipmentID)
	}

	util.ShipmentsDispatchedTotal.Inc()
	p.logger.Info("Shipment dispatched",
		zap.String("shipment_id", shipmentID),
		zap.String("operator", operator),
		zap.String("carrier", carrier),
		zap.Int64("lines", affected))

	if p.publisher != nil {
		if err := p.publisher.PublishShipmentDispatched(ctx, shipmentID, operator, carrier, dispatchType); err != nil {
			p.logger.Warn("Dispatched event publish failed",
				zap.String("shipment_id", shipmentID),
				zap.Error(err))
		}
	}
	return nil
}

// ApplyCancellation cancels every pending or packed line. Dispatched
// lines stay dispatched; a shipment with no affected lines is a no-op
// and emits no event.
func (p *PickingService) ApplyCancellation(ctx context.Context, shipmentID, reason string) error {
	affected, err := p.ledger.MarkShipmentCancelled(ctx, shipmentID, time.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return nil
	}

	p.logger.Info("Shipment cancelled",
		zap.String("shipment_id", shipmentID),
		zap.String("reason", reason),
		zap.Int64("lines", affected))

	if p.publisher != nil {
		if err := p.publisher.PublishShipmentCancelled(ctx, shipmentID, reason); err != nil {
			p.logger.Warn("Cancelled event publish failed",
				zap.String("shipment_id", shipmentID),
				zap.Error(err))
		}
	}
	return nil
}

// ShipmentState reports the shipment's ledger state. Lines of one
// shipment always share a state, so the first row answers for all.
func (p *PickingService) ShipmentState(ctx context.Context, shipmentID string) (string, error) {
	records, err := p.ledger.PickRecords(ctx, shipmentID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", &models.NotFoundError{Kind: "pick ledger", ID: shipmentID}
	}
	return records[0].State, nil
}

// seedFromCache creates pending ledger rows from the cached shipment
// detail.
func (p *PickingService) seedFromCache(ctx context.Context, shipmentID string) error {
	detail, err := p.cache.GetShipment(ctx, shipmentID)
	if err != nil {
		return err
	}
	if detail == nil || len(detail.Items) == 0 {
		return models.NewDomainError("shipment %s has not been resolved, scan it first", shipmentID)
	}

	records := make([]models.PickRecord, 0, len(detail.Items))
	for _, item := range detail.Items {
		records = append(records, models.PickRecord{
			ShipmentID: shipmentID,
			OrderID:    detail.PrimaryOrderID,
			ItemID:     item.ItemID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			State:      models.PickStatePending,
		})
	}
	return p.ledger.SeedPickRecords(ctx, records)
}

// shipmentCancelledUpstream checks the cached status, then the live
// one. An unreachable marketplace does not block dispatch.
func (p *PickingService) shipmentCancelledUpstream(ctx context.Context, shipmentID string) bool {
	if detail, err := p.cache.GetShipment(ctx, shipmentID); err == nil && detail != nil {
		if detail.StatusRaw == cancelledShipmentStatus {
			return true
		}
	}

	shipment, err := p.market.FetchShipment(ctx, shipmentID)
	if err != nil {
		p.logger.Warn("Live status check failed, dispatching on cached status",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
		return false
	}
	return shipment.Status == cancelledShipmentStatus
}

// packRejection names why the shipment cannot be packed, or returns
// "" when every line is pending.
func packRejection(records []models.PickRecord) string {
	allPacked := true
	for _, rec := range records {
		switch rec.State {
		case models.PickStateDispatched:
			return "already_dispatched"
		case models.PickStateCancelled:
			return "cancelled"
		case models.PickStatePending:
			allPacked = false
		}
	}
	if allPacked {
		return "already_packed"
	}
	for _, rec := range records {
		if rec.State != models.PickStatePending {
			return "mixed_states"
		}
	}
	return ""
}

// dispatchRejection names why the shipment cannot be dispatched, or
// returns "" when every line is packed.
func dispatchRejection(records []models.PickRecord) string {
	for _, rec := range records {
		switch rec.State {
		case models.PickStateCancelled:
			return "cancelled"
		case models.PickStateDispatched:
			return "already_dispatched"
		case models.PickStatePending:
			return "not_packed"
		}
	}
	return ""
}
