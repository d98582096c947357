package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/checkout"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/entitlements"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/usercontext"
)

type CheckoutController struct {
	orchestrator *checkout.Orchestrator
	ledger       *entitlements.Ledger
}

func NewCheckoutController(orchestrator *checkout.Orchestrator, ledger *entitlements.Ledger) *CheckoutController {
	return &CheckoutController{orchestrator: orchestrator, ledger: ledger}
}

// orderRequest is what the client reports after completing the payment.
// Only the payment id is trusted, everything else is re-read from the
// payment processor.
type orderRequest struct {
	PaymentID string `json:"paymentId" validate:"required,max=255"`
}

// HandleBuyCourse starts or resumes a purchase and returns what the client
// needs to collect the payment.
func (cc *CheckoutController) HandleBuyCourse(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "courseId")
	if err != nil {
		return respondError(c, err)
	}

	res, err := cc.orchestrator.Begin(c.UserContext(), usercontext.GetAccount(c), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":         "Checkout started",
		"course":          res.Course,
		"clientSecret":    res.ClientSecret,
		"paymentIntentId": res.PaymentIntentID,
		"amount":          res.Amount,
		"currency":        res.Currency,
		"state":           res.State,
	})
}

// HandleOrder confirms a payment the client reports as completed.
func (cc *CheckoutController) HandleOrder(c *fiber.Ctx) error {
	var req orderRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	res, err := cc.orchestrator.Confirm(c.UserContext(), usercontext.GetAccount(c), req.PaymentID)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if res.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"message":   "Order confirmed",
		"orderData": res.Entitlement,
		"state":     res.State,
		"replayed":  res.Replayed,
	})
}

type purchasedCourse struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Price       int64              `json:"price"`
	Image       models.CourseImage `json:"image"`
	Available   bool               `json:"available"`
}

// HandlePurchases lists the caller's entitlements together with the course
// data as it was sold. Removed courses stay listed as unavailable.
func (cc *CheckoutController) HandlePurchases(c *fiber.Ctx) error {
	acc := usercontext.GetAccount(c)
	purchases, err := cc.ledger.ListForUser(c.UserContext(), acc.AccountID)
	if err != nil {
		return respondError(c, err)
	}

	courseData := make([]purchasedCourse, 0, len(purchases))
	ents := make([]models.Entitlement, 0, len(purchases))
	var total int64
	currency := ""
	for _, p := range purchases {
		title := p.Course.Title
		if title == "" {
			title = p.Entitlement.CourseTitle
		}
		courseData = append(courseData, purchasedCourse{
			ID:          p.Entitlement.CourseID,
			Title:       title,
			Description: p.Course.Description,
			Price:       p.Entitlement.Amount,
			Image:       p.Course.Image,
			Available:   !p.Course.IsDeleted() && !p.Course.CreatedAt.IsZero(),
		})
		ents = append(ents, p.Entitlement)
		total += p.Entitlement.Amount
		currency = p.Entitlement.Currency
	}

	return c.JSON(fiber.Map{
		"courseData": courseData,
		"purchases":  ents,
		"count":      len(purchases),
		"totalSpent": total,
		"currency":   currency,
	})
}
