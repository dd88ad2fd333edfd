package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vpnrotator/internal/domain"
	"vpnrotator/internal/rotation"
)

type recordingInserter struct {
	mu      sync.Mutex
	batches [][]domain.RotationRecord
	err     error
}

func (r *recordingInserter) insert(_ context.Context, records []domain.RotationRecord, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]domain.RotationRecord(nil), records...))
	return r.err
}

func (r *recordingInserter) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, batch := range r.batches {
		n += len(batch)
	}
	return n
}

func stubHistoryDatabase(t *testing.T, inserter *recordingInserter) {
	t.Helper()

	origInsert := insertRotationRecordsFunc
	origBatch := rotationRecordBatchSize
	insertRotationRecordsFunc = inserter.insert
	rotationRecordBatchSize = func(n int) int { return n }

	t.Cleanup(func() {
		insertRotationRecordsFunc = origInsert
		rotationRecordBatchSize = origBatch
	})
}

func testRotation(id string, reason rotation.Reason) rotation.Rotation {
	return rotation.Rotation{
		RequestID: "req-" + id,
		Reason:    reason,
		From:      "proxy-1000",
		Proxy: domain.ProxyDescriptor{
			ID:       id,
			IP:       "10.0.0.7",
			Port:     3128,
			Country:  "Canada",
			City:     "Toronto",
			Protocol: domain.ProtocolHTTPS,
		},
		At: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRotationHistoryFlushesOnShutdown(t *testing.T) {
	inserter := &recordingInserter{}
	stubHistoryDatabase(t, inserter)

	history := NewRotationHistory()
	history.interval = time.Hour

	history.RecordRotation(testRotation("proxy-1001", rotation.ReasonAuto))
	history.RecordRotation(testRotation("proxy-1002", rotation.ReasonManual))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		history.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("history routine did not stop")
	}

	if got := inserter.total(); got != 2 {
		t.Fatalf("inserted %d records, want 2", got)
	}

	record := inserter.batches[0][0]
	if record.ProxyID != "proxy-1001" || record.Reason != "auto" || record.Address != "10.0.0.7:3128" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.FromProxyID != "proxy-1000" || record.City != "Toronto" {
		t.Fatalf("unexpected record origin %+v", record)
	}
}

func TestRotationHistoryFlushesOnTimer(t *testing.T) {
	inserter := &recordingInserter{}
	stubHistoryDatabase(t, inserter)

	history := NewRotationHistory()
	history.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go history.Run(ctx)

	history.RecordRotation(testRotation("proxy-1003", rotation.ReasonSelect))

	deadline := time.Now().Add(2 * time.Second)
	for inserter.total() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRotationHistoryDropsWhenQueueFull(t *testing.T) {
	history := &RotationHistory{queue: make(chan domain.RotationRecord, 1), interval: time.Hour}

	history.RecordRotation(testRotation("proxy-1", rotation.ReasonAuto))
	history.RecordRotation(testRotation("proxy-2", rotation.ReasonAuto))

	if len(history.queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(history.queue))
	}
}

func TestRotationHistoryInsertErrorIsNotFatal(t *testing.T) {
	inserter := &recordingInserter{err: errors.New("db down")}
	stubHistoryDatabase(t, inserter)

	history := NewRotationHistory()
	history.RecordRotation(testRotation("proxy-1004", rotation.ReasonConnect))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	history.Run(ctx)

	if inserter.total() != 1 {
		t.Fatalf("expected one insert attempt, got %d records", inserter.total())
	}
}

func TestHistoryRetentionPrunesImmediately(t *testing.T) {
	orig := pruneRotationRecordsFunc
	t.Cleanup(func() { pruneRotationRecordsFunc = orig })

	keeps := make(chan int, 1)
	pruneRotationRecordsFunc = func(_ context.Context, keep int) (int64, error) {
		keeps <- keep
		return 3, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		StartHistoryRetentionRoutine(ctx, 0)
		close(done)
	}()

	select {
	case keep := <-keeps:
		if keep != DefaultHistoryRetention {
			t.Fatalf("pruned with keep=%d, want %d", keep, DefaultHistoryRetention)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retention routine did not prune")
	}

	cancel()
	<-done
}
