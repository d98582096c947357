package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/mail"
)

type recordingDeliverer struct {
	mu       sync.Mutex
	failures int
	sent     []mail.Receipt
}

func (d *recordingDeliverer) SendReceipt(_ context.Context, r mail.Receipt) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("smtp unavailable")
	}
	d.sent = append(d.sent, r)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func TestEnqueueStoresPendingJob(t *testing.T) {
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 1)
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobTypeReceiptMail, map[string]interface{}{"to": "a@example.com"})
	require.NoError(t, err)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Equal(t, DefaultMaxRetries, stored.MaxRetries)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestReceiptQueueDeliversOnWorker(t *testing.T) {
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 2)
	deliverer := &recordingDeliverer{}
	receipts := NewReceiptQueue(q, deliverer)

	q.Start()
	defer q.Stop()

	err := receipts.SendReceipt(context.Background(), mail.Receipt{
		To:          "asha@example.com",
		CourseTitle: "Go for Backend Engineers",
		Amount:      149900,
		Currency:    "inr",
		PaymentID:   "pi_1",
		PurchasedAt: time.Now(),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return deliverer.count() == 1 }, 5*time.Second, 20*time.Millisecond)
	deliverer.mu.Lock()
	sent := deliverer.sent[0]
	deliverer.mu.Unlock()
	assert.Equal(t, "pi_1", sent.PaymentID)
	assert.Equal(t, int64(149900), sent.Amount)

	require.Eventually(t, func() bool {
		stats, err := q.GetJobStats(context.Background())
		return err == nil && stats[JobStatusCompleted] == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFailedJobIsRetried(t *testing.T) {
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 1).WithRetryDelay(10 * time.Millisecond)
	deliverer := &recordingDeliverer{failures: 1}
	receipts := NewReceiptQueue(q, deliverer)

	q.Start()
	defer q.Stop()

	require.NoError(t, receipts.SendReceipt(context.Background(), mail.Receipt{To: "b@example.com", PaymentID: "pi_2"}))

	require.Eventually(t, func() bool { return deliverer.count() == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestUnknownJobTypeFailsWithoutRetry(t *testing.T) {
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 1)
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobType("unknown"), map[string]interface{}{})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMsg, "unknown job type")

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestSweeperRequeuesStuckJobs(t *testing.T) {
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 1)
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobTypeReceiptMail, map[string]interface{}{})
	require.NoError(t, err)
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	dequeued.MarkAsProcessing()
	q.updateJob(ctx, dequeued)

	q.recoverStuck(ctx, time.Minute, time.Now().Add(2*time.Minute))

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}
