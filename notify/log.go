package notify

import (
	"context"
	"log"

	"github.com/warp/studio-engine/studio"
)

// LogNotifier only logs slot changes. Used when no broker is configured.
type LogNotifier struct{}

var _ studio.CalendarNotifier = LogNotifier{}

func (LogNotifier) SlotCreated(_ context.Context, slot studio.Slot) (string, error) {
	ref := ExternalRef(slot.ID)
	log.Printf("[Calendar] created %s (%s - %s)", ref, slot.StartAt.Format("2006-01-02 15:04"), slot.EndAt.Format("15:04"))
	return ref, nil
}

func (LogNotifier) SlotOccupied(_ context.Context, externalRef, label string) error {
	log.Printf("[Calendar] occupied %s: %s", externalRef, label)
	return nil
}

func (LogNotifier) SlotFreed(_ context.Context, externalRef string) error {
	log.Printf("[Calendar] freed %s", externalRef)
	return nil
}

func (LogNotifier) SlotDeleted(_ context.Context, externalRef string) error {
	log.Printf("[Calendar] deleted %s", externalRef)
	return nil
}
