package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"vpnrotator/internal/database"
	"vpnrotator/internal/domain"
	"vpnrotator/internal/rotation"
)

const (
	historyFlushInterval  = 5 * time.Second
	historyBatchThreshold = 500
	historyInsertTimeout  = 30 * time.Second
	historyQueueSize      = 10_000
)

var (
	insertRotationRecordsFunc = database.InsertRotationRecords
	rotationRecordBatchSize   = database.CalculateRotationRecordBatchSize
)

// RotationHistory buffers rotations from the controller and writes them to
// the database in batches. RecordRotation never blocks.
type RotationHistory struct {
	queue        chan domain.RotationRecord
	flushTracker sync.WaitGroup
	interval     time.Duration
}

func NewRotationHistory() *RotationHistory {
	return &RotationHistory{
		queue:    make(chan domain.RotationRecord, historyQueueSize),
		interval: historyFlushInterval,
	}
}

func (h *RotationHistory) RecordRotation(r rotation.Rotation) {
	record := domain.RotationRecord{
		RequestID:   r.RequestID,
		Reason:      string(r.Reason),
		FromProxyID: r.From,
		ProxyID:     r.Proxy.ID,
		Address:     r.Proxy.Address(),
		Protocol:    string(r.Proxy.Protocol),
		Country:     r.Proxy.Country,
		City:        r.Proxy.City,
		CreatedAt:   r.At,
	}

	select {
	case h.queue <- record:
	default:
		log.Warn("Rotation history queue full, dropping record", "request_id", r.RequestID)
	}
}

// Run flushes on a timer or when the buffer fills, and drains the queue when
// ctx is done.
func (h *RotationHistory) Run(ctx context.Context) {
	var buffer []domain.RotationRecord
	timer := time.NewTimer(h.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drain(&buffer)
			h.flush(&buffer)
			h.flushTracker.Wait()
			return
		case record := <-h.queue:
			buffer = append(buffer, record)
			if len(buffer) >= historyBatchThreshold {
				h.flush(&buffer)
				resetTimer(timer, h.interval)
			}
		case <-timer.C:
			h.flush(&buffer)
			timer.Reset(h.interval)
		}
	}
}

func (h *RotationHistory) flush(buffer *[]domain.RotationRecord) {
	if len(*buffer) == 0 {
		return
	}

	toInsert := *buffer
	*buffer = nil

	batchSize := rotationRecordBatchSize(len(toInsert))
	h.flushTracker.Add(1)

	go func(records []domain.RotationRecord, size int) {
		defer h.flushTracker.Done()

		dbCtx, cancel := context.WithTimeout(context.Background(), historyInsertTimeout)
		defer cancel()

		if err := insertRotationRecordsFunc(dbCtx, records, size); err != nil {
			log.Error("Failed to insert rotation history", "error", err, "count", len(records))
		}
	}(toInsert, batchSize)
}

func (h *RotationHistory) drain(buffer *[]domain.RotationRecord) {
	for {
		select {
		case record := <-h.queue:
			*buffer = append(*buffer, record)
		default:
			return
		}
	}
}

func resetTimer(timer *time.Timer, interval time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(interval)
}
