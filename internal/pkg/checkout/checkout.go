// Package checkout coordinates a purchase from course selection to the
// recorded entitlement. Money moves only through the payment gateway and the
// entitlement is granted only after the gateway reports success.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/app/repository"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/billing"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/entitlements"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/mail"
)

// State is the position of a purchase in the checkout workflow.
type State string

const (
	StateInitiated           State = "initiated"
	StateAwaitingPayment     State = "awaiting_payment"
	StateConfirmed           State = "confirmed"
	StateEntitled            State = "entitled"
	StateRejected            State = "rejected"
	StatePaymentFailed       State = "payment_failed"
	StateCanceled            State = "canceled"
	StateNeedsReconciliation State = "needs_reconciliation"
)

// Outcomes reported to the metrics recorder.
const (
	OutcomeBegun               = "begun"
	OutcomeReused              = "reused"
	OutcomeAlreadyPurchased    = "already_purchased"
	OutcomeEntitled            = "entitled"
	OutcomeReplayed            = "replayed"
	OutcomePaymentFailed       = "payment_failed"
	OutcomeConflictingPayment  = "conflicting_payment"
	OutcomeNeedsReconciliation = "needs_reconciliation"
)

const (
	metaUserID      = "user_id"
	metaCourseID    = "course_id"
	metaCheckoutRef = "checkout_ref"
)

var (
	ErrAlreadyPurchased = apperror.New(apperror.KindAlreadyPurchased, "Course already purchased")
	ErrCheckoutMissing  = apperror.NotFound("Checkout not found")
	ErrNotOwner         = apperror.Forbidden("Checkout belongs to another account")
	ErrUsersOnly        = apperror.Forbidden("Only user accounts can purchase courses")
)

// PaymentGateway is the external payment capability.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req billing.IntentRequest) (*billing.Intent, error)
	GetIntent(ctx context.Context, id string) (*billing.Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

type CourseReader interface {
	Get(ctx context.Context, id uint) (*models.Course, error)
}

type Ledger interface {
	HasEntitlement(ctx context.Context, userID, courseID uint) (bool, error)
	Grant(ctx context.Context, g entitlements.Grant) (*models.Entitlement, error)
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, r mail.Receipt) error
}

type Recorder interface {
	CheckoutOutcome(outcome string)
}

type Config struct {
	Currency string
	// Timeout bounds every gateway call.
	Timeout time.Duration
}

type Orchestrator struct {
	courses  CourseReader
	ledger   Ledger
	attempts repository.CheckoutAttemptRepository
	users    repository.UserRepository
	gateway  PaymentGateway
	receipts ReceiptSender
	recorder Recorder
	cfg      Config
	newKey   func() string
	wg       sync.WaitGroup
}

// NewOrchestrator wires the workflow. receipts and recorder may be nil.
func NewOrchestrator(
	courses CourseReader,
	ledger Ledger,
	attempts repository.CheckoutAttemptRepository,
	users repository.UserRepository,
	gateway PaymentGateway,
	receipts ReceiptSender,
	recorder Recorder,
	cfg Config,
) *Orchestrator {
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Orchestrator{
		courses:  courses,
		ledger:   ledger,
		attempts: attempts,
		users:    users,
		gateway:  gateway,
		receipts: receipts,
		recorder: recorder,
		cfg:      cfg,
		newKey:   uuid.NewString,
	}
}

// BeginResult is what the client needs to complete the payment.
type BeginResult struct {
	Course          *models.Course
	ClientSecret    string
	PaymentIntentID string
	Amount          int64
	Currency        string
	State           State
}

// ConfirmResult reports the entitlement a confirmation ended in.
type ConfirmResult struct {
	Entitlement *models.Entitlement
	State       State
	// Replayed is set when the confirmation had already been applied.
	Replayed bool
}

// Begin starts or resumes a purchase of courseID.
func (o *Orchestrator) Begin(ctx context.Context, acc *auth.AccountContext, courseID uint) (*BeginResult, error) {
	if acc == nil || acc.Role != models.ROLE_USER {
		return nil, ErrUsersOnly
	}

	// Initiated
	course, err := o.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	owned, err := o.ledger.HasEntitlement(ctx, acc.AccountID, course.ID)
	if err != nil {
		return nil, err
	}
	if owned {
		o.record(OutcomeAlreadyPurchased)
		return nil, ErrAlreadyPurchased
	}

	// AwaitingPayment
	pending, err := o.attempts.FindOpen(ctx, acc.AccountID, course.ID)
	if err != nil {
		return nil, apperror.Internal("failed to load pending checkouts", err)
	}
	for i := range pending {
		attempt := &pending[i]
		res, err := o.resumeOrRetire(ctx, attempt, course)
		if err != nil {
			return nil, err
		}
		if res != nil {
			o.record(OutcomeReused)
			return res, nil
		}
	}

	return o.startAttempt(ctx, acc, course)
}

// resumeOrRetire reuses an open intent whose amount still matches the price,
// including one that was declined. Otherwise the intent is canceled and nil
// is returned, so no payable intent is left behind.
func (o *Orchestrator) resumeOrRetire(ctx context.Context, attempt *models.CheckoutAttempt, course *models.Course) (*BeginResult, error) {
	intent, err := o.getIntent(ctx, attempt.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case billing.IntentSucceeded:
		// paid but never confirmed; settle it instead of charging twice
		if _, err := o.settle(ctx, attempt, intent); err != nil {
			return nil, err
		}
		o.record(OutcomeAlreadyPurchased)
		return nil, ErrAlreadyPurchased
	case billing.IntentProcessing:
		return nil, apperror.New(apperror.KindPaymentFailed, "A payment for this course is still processing")
	case billing.IntentRequiresPayment, billing.IntentFailed:
		if attempt.Amount == course.Price && attempt.Currency == o.cfg.Currency {
			o.setStatus(ctx, attempt, models.CheckoutStatusAwaitingPayment, "")
			return &BeginResult{
				Course:          course,
				ClientSecret:    intent.ClientSecret,
				PaymentIntentID: intent.ID,
				Amount:          attempt.Amount,
				Currency:        attempt.Currency,
				State:           StateAwaitingPayment,
			}, nil
		}
		if err := o.cancelIntent(ctx, intent.ID); err != nil {
			return nil, err
		}
	}

	if err := o.attempts.UpdateStatus(ctx, attempt.ID, models.CheckoutStatusCanceled, "superseded by a new checkout"); err != nil {
		return nil, apperror.Internal("failed to retire checkout", err)
	}
	log.Infof("[Checkout] retired intent %s for user %d course %d", attempt.PaymentIntentID, attempt.UserID, attempt.CourseID)
	return nil, nil
}

func (o *Orchestrator) startAttempt(ctx context.Context, acc *auth.AccountContext, course *models.Course) (*BeginResult, error) {
	ref := o.newKey()
	gctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	intent, err := o.gateway.CreateIntent(gctx, billing.IntentRequest{
		Amount:         course.Price,
		Currency:       o.cfg.Currency,
		IdempotencyKey: ref,
		Description:    course.Title,
		Metadata: map[string]string{
			metaUserID:      strconv.FormatUint(uint64(acc.AccountID), 10),
			metaCourseID:    strconv.FormatUint(uint64(course.ID), 10),
			metaCheckoutRef: ref,
		},
	})
	if err != nil {
		o.record(OutcomePaymentFailed)
		return nil, apperror.Wrap(apperror.KindPaymentFailed, "Payment could not be started, please try again", err)
	}

	attempt := &models.CheckoutAttempt{
		UserID:          acc.AccountID,
		CourseID:        course.ID,
		PaymentIntentID: intent.ID,
		Amount:          course.Price,
		Currency:        o.cfg.Currency,
		CourseTitle:     course.Title,
		Status:          models.CheckoutStatusAwaitingPayment,
	}
	if err := o.attempts.Create(ctx, attempt); err != nil {
		if cerr := o.cancelIntent(ctx, intent.ID); cerr != nil {
			log.Warnf("[Checkout] failed to cancel orphaned intent %s: %v", intent.ID, cerr)
		}
		return nil, apperror.Internal("failed to record checkout", err)
	}

	o.record(OutcomeBegun)
	log.Infof("[Checkout] user %d started checkout %s for course %d (%d %s)", acc.AccountID, intent.ID, course.ID, attempt.Amount, attempt.Currency)
	return &BeginResult{
		Course:          course,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          attempt.Amount,
		Currency:        attempt.Currency,
		State:           StateAwaitingPayment,
	}, nil
}

// Confirm handles the client's report that it completed the payment. The
// intent status is always re-read from the gateway.
func (o *Orchestrator) Confirm(ctx context.Context, acc *auth.AccountContext, intentID string) (*ConfirmResult, error) {
	if acc == nil || acc.Role != models.ROLE_USER {
		return nil, ErrUsersOnly
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, apperror.Validation("paymentId is required")
	}

	attempt, err := o.loadAttempt(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != acc.AccountID {
		return nil, ErrNotOwner
	}
	return o.confirmAttempt(ctx, attempt)
}

// ConfirmIntent runs the confirmation for a signed webhook about intentID.
func (o *Orchestrator) ConfirmIntent(ctx context.Context, intentID string) (*ConfirmResult, error) {
	attempt, err := o.loadAttempt(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return o.confirmAttempt(ctx, attempt)
}

// MarkFailed records a failed or canceled intent reported by the processor.
// Attempts that already ended in an entitlement are left alone.
func (o *Orchestrator) MarkFailed(ctx context.Context, intentID string, canceled bool, reason string) error {
	attempt, err := o.loadAttempt(ctx, intentID)
	if err != nil {
		return err
	}
	if attempt.Status == models.CheckoutStatusEntitled || attempt.Status == models.CheckoutStatusNeedsReconciliation {
		return nil
	}

	status := models.CheckoutStatusPaymentFailed
	if canceled {
		status = models.CheckoutStatusCanceled
	}
	if err := o.attempts.UpdateStatus(ctx, attempt.ID, status, reason); err != nil {
		return apperror.Internal("failed to update checkout", err)
	}
	o.record(OutcomePaymentFailed)
	return nil
}

func (o *Orchestrator) loadAttempt(ctx context.Context, intentID string) (*models.CheckoutAttempt, error) {
	attempt, err := o.attempts.GetByIntentID(ctx, intentID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrCheckoutMissing
		}
		return nil, apperror.Internal("failed to load checkout", err)
	}
	return attempt, nil
}

func (o *Orchestrator) confirmAttempt(ctx context.Context, attempt *models.CheckoutAttempt) (*ConfirmResult, error) {
	// Entitled already; the ledger answers replays without another gateway call.
	if attempt.Status == models.CheckoutStatusEntitled {
		return o.grant(ctx, attempt)
	}

	intent, err := o.getIntent(ctx, attempt.PaymentIntentID)
	if err != nil {
		o.record(OutcomePaymentFailed)
		return nil, err
	}
	return o.settle(ctx, attempt, intent)
}

// settle checks a freshly read intent against the attempt snapshot and
// grants the entitlement when it succeeded.
func (o *Orchestrator) settle(ctx context.Context, attempt *models.CheckoutAttempt, intent *billing.Intent) (*ConfirmResult, error) {
	switch intent.Status {
	case billing.IntentSucceeded:
	case billing.IntentFailed, billing.IntentCanceled:
		status := models.CheckoutStatusPaymentFailed
		if intent.Status == billing.IntentCanceled {
			status = models.CheckoutStatusCanceled
		}
		reason := intent.FailureMessage
		if reason == "" {
			reason = string(intent.Status)
		}
		if err := o.attempts.UpdateStatus(ctx, attempt.ID, status, reason); err != nil {
			log.Errorf("[Checkout] failed to mark attempt %d %s: %v", attempt.ID, status, err)
		}
		o.record(OutcomePaymentFailed)
		return nil, apperror.New(apperror.KindPaymentFailed, "Payment failed, please try again")
	default:
		o.record(OutcomePaymentFailed)
		return nil, apperror.New(apperror.KindPaymentFailed, "Payment has not been completed")
	}

	if err := o.matchSnapshot(attempt, intent); err != nil {
		log.Warnf("[Checkout] intent %s does not match checkout %d: %v", intent.ID, attempt.ID, err)
		if uerr := o.attempts.UpdateStatus(ctx, attempt.ID, models.CheckoutStatusNeedsReconciliation, err.Error()); uerr != nil {
			log.Errorf("[Checkout] failed to flag attempt %d: %v", attempt.ID, uerr)
		}
		o.record(OutcomeConflictingPayment)
		return nil, apperror.Wrap(apperror.KindConflictingPayment, "Payment does not match this purchase", err)
	}

	return o.grant(ctx, attempt)
}

func (o *Orchestrator) matchSnapshot(attempt *models.CheckoutAttempt, intent *billing.Intent) error {
	if intent.Metadata[metaUserID] != strconv.FormatUint(uint64(attempt.UserID), 10) ||
		intent.Metadata[metaCourseID] != strconv.FormatUint(uint64(attempt.CourseID), 10) {
		return errors.New("metadata does not match user and course")
	}
	if intent.Amount != attempt.Amount || !strings.EqualFold(intent.Currency, attempt.Currency) {
		return fmt.Errorf("charged %d %s, expected %d %s", intent.Amount, intent.Currency, attempt.Amount, attempt.Currency)
	}
	return nil
}

// grant records the entitlement for a verified payment.
func (o *Orchestrator) grant(ctx context.Context, attempt *models.CheckoutAttempt) (*ConfirmResult, error) {
	ent, err := o.ledger.Grant(ctx, entitlements.Grant{
		UserID:      attempt.UserID,
		CourseID:    attempt.CourseID,
		PaymentID:   attempt.PaymentIntentID,
		Amount:      attempt.Amount,
		Currency:    attempt.Currency,
		CourseTitle: attempt.CourseTitle,
	})

	switch {
	case err == nil:
		o.setStatus(ctx, attempt, models.CheckoutStatusEntitled, "")
		o.record(OutcomeEntitled)
		log.Infof("[Checkout] user %d entitled to course %d via %s", attempt.UserID, attempt.CourseID, attempt.PaymentIntentID)
		o.sendReceipt(attempt, ent)
		return &ConfirmResult{Entitlement: ent, State: StateEntitled}, nil

	case errors.Is(err, entitlements.ErrAlreadyEntitled) && ent != nil && ent.PaymentID == attempt.PaymentIntentID:
		o.setStatus(ctx, attempt, models.CheckoutStatusEntitled, "")
		o.record(OutcomeReplayed)
		return &ConfirmResult{Entitlement: ent, State: StateEntitled, Replayed: true}, nil

	case errors.Is(err, entitlements.ErrAlreadyEntitled) && ent != nil:
		// a second, different payment for a course the user already owns
		reason := fmt.Sprintf("already entitled via %s", ent.PaymentID)
		replayed := attempt.Status == models.CheckoutStatusNeedsReconciliation
		o.setStatus(ctx, attempt, models.CheckoutStatusNeedsReconciliation, reason)
		if replayed {
			return &ConfirmResult{Entitlement: ent, State: StateNeedsReconciliation, Replayed: true}, nil
		}
		o.record(OutcomeNeedsReconciliation)
		log.Warnf("[Checkout] payment %s for user %d course %d needs reconciliation: %s",
			attempt.PaymentIntentID, attempt.UserID, attempt.CourseID, reason)
		return &ConfirmResult{Entitlement: ent, State: StateNeedsReconciliation}, nil

	case errors.Is(err, entitlements.ErrConflictingPayment):
		o.setStatus(ctx, attempt, models.CheckoutStatusNeedsReconciliation, "payment id bound to another purchase")
		o.record(OutcomeConflictingPayment)
		return nil, err

	default:
		return nil, err
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, attempt *models.CheckoutAttempt, status, reason string) {
	if attempt.Status == status {
		return
	}
	if err := o.attempts.UpdateStatus(ctx, attempt.ID, status, reason); err != nil {
		log.Errorf("[Checkout] failed to set attempt %d to %s: %v", attempt.ID, status, err)
		return
	}
	attempt.Status = status
	attempt.FailureReason = reason
}

func (o *Orchestrator) getIntent(ctx context.Context, id string) (*billing.Intent, error) {
	gctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	intent, err := o.gateway.GetIntent(gctx, id)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPaymentFailed, "Payment status could not be verified, please try again", err)
	}
	return intent, nil
}

func (o *Orchestrator) cancelIntent(ctx context.Context, id string) error {
	gctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	if err := o.gateway.CancelIntent(gctx, id); err != nil {
		return apperror.Wrap(apperror.KindPaymentFailed, "Previous payment could not be canceled, please try again", err)
	}
	return nil
}

// sendReceipt mails the receipt in the background; failures are only logged.
func (o *Orchestrator) sendReceipt(attempt *models.CheckoutAttempt, ent *models.Entitlement) {
	if o.receipts == nil || o.users == nil {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := o.users.GetByID(ctx, attempt.UserID)
		if err != nil {
			log.Warnf("[Checkout] receipt skipped, user %d not loaded: %v", attempt.UserID, err)
			return
		}
		err = o.receipts.SendReceipt(ctx, mail.Receipt{
			To:          user.Email,
			Name:        user.FirstName,
			CourseTitle: ent.CourseTitle,
			Amount:      ent.Amount,
			Currency:    ent.Currency,
			PaymentID:   ent.PaymentID,
			PurchasedAt: ent.CreatedAt,
		})
		if err != nil {
			log.Warnf("[Checkout] receipt for %s failed: %v", ent.PaymentID, err)
		}
	}()
}

// Wait blocks until background receipt deliveries finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) record(outcome string) {
	if o.recorder != nil {
		o.recorder.CheckoutOutcome(outcome)
	}
}
