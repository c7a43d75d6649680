package kafka

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
)

type InboxRepairer interface {
	RepairInbox(ctx context.Context, ev domain.InboxRepairEvent) error
}

// RepairHandler feeds inbox.repair records to the service.
type RepairHandler struct {
	svc InboxRepairer
}

func NewRepairHandler(svc InboxRepairer) *RepairHandler {
	return &RepairHandler{svc: svc}
}

// Handle drops records that are not repair events and returns repair
// failures so the consumer retries them. Repairs are idempotent.
func (h *RepairHandler) Handle(ctx context.Context, value []byte) error {
	log := observability.GetLogger(ctx)

	var ev domain.InboxRepairEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		log.Error("invalid inbox repair event", zap.Error(err))
		return nil
	}
	if ev.Type != domain.EventInboxRepair {
		log.Warn("ignoring event", zap.String("type", ev.Type))
		return nil
	}

	if err := h.svc.RepairInbox(ctx, ev); err != nil {
		log.Warn("inbox repair failed",
			zap.String("conversation_id", ev.ConversationID.String()),
			zap.String("message_id", ev.MessageID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
