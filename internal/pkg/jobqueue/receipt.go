package jobqueue

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/mail"
)

// ReceiptDeliverer actually sends a receipt, usually the SMTP mailer.
type ReceiptDeliverer interface {
	SendReceipt(ctx context.Context, r mail.Receipt) error
}

// ReceiptQueue defers receipt mails to the job queue so a slow or failing
// SMTP server is retried instead of dropping the mail.
type ReceiptQueue struct {
	queue *Queue
}

// NewReceiptQueue registers the receipt handler on q and returns the
// enqueueing side.
func NewReceiptQueue(q *Queue, deliverer ReceiptDeliverer) *ReceiptQueue {
	q.Handle(JobTypeReceiptMail, func(ctx context.Context, job *Job) error {
		payload, err := ReceiptMailJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid receipt payload: %w", err)
		}
		return deliverer.SendReceipt(ctx, payload.Receipt())
	})
	return &ReceiptQueue{queue: q}
}

// SendReceipt enqueues the receipt; delivery happens on a worker.
func (r *ReceiptQueue) SendReceipt(ctx context.Context, receipt mail.Receipt) error {
	_, err := r.queue.EnqueueJob(ctx, JobTypeReceiptMail, ReceiptMailJobPayloadFrom(receipt).ToMap())
	return err
}

func ReceiptMailJobPayloadFrom(r mail.Receipt) ReceiptMailJobPayload {
	return ReceiptMailJobPayload{
		To:          r.To,
		Name:        r.Name,
		CourseTitle: r.CourseTitle,
		Amount:      r.Amount,
		Currency:    r.Currency,
		PaymentID:   r.PaymentID,
		PurchasedAt: r.PurchasedAt,
	}
}

func (p ReceiptMailJobPayload) Receipt() mail.Receipt {
	return mail.Receipt{
		To:          p.To,
		Name:        p.Name,
		CourseTitle: p.CourseTitle,
		Amount:      p.Amount,
		Currency:    p.Currency,
		PaymentID:   p.PaymentID,
		PurchasedAt: p.PurchasedAt,
	}
}
