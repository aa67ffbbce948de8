package engine

import (
	"time"

	"github.com/shopqueue/shop-queue/internal/store"
)

// ServiceLine is one service on a queue snapshot.
type ServiceLine struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int32   `json:"quantity"`
}

// QueueSnapshot is a read-only view of a queue entry at scoring time. It is
// built from a store read, consumed once, and discarded; scoring never
// mutates it.
type QueueSnapshot struct {
	QueueID         string        `json:"queue_id"`
	WaitTimeMinutes int           `json:"wait_time_minutes"`
	CustomerTier    string        `json:"customer_tier"`
	Services        []ServiceLine `json:"services"`
}

// SnapshotFromQueue builds a scoring snapshot from a stored queue entry.
// Wait time is the actual wait (arrival to call) for called queues and the
// elapsed wait otherwise.
func SnapshotFromQueue(queue *store.Queue, now time.Time) QueueSnapshot {
	waitedUntil := now
	if queue.CalledAt != nil {
		waitedUntil = *queue.CalledAt
	}
	waitMinutes := int(waitedUntil.Sub(queue.CreatedAt) / time.Minute)
	if waitMinutes < 0 {
		waitMinutes = 0
	}

	services := make([]ServiceLine, 0, len(queue.Services))
	for _, line := range queue.Services {
		services = append(services, ServiceLine{
			Name:      line.ServiceName,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	return QueueSnapshot{
		QueueID:         queue.ID,
		WaitTimeMinutes: waitMinutes,
		CustomerTier:    queue.CustomerTier,
		Services:        services,
	}
}
