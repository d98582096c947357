package billing

// IntentStatus is the provider neutral state of a payment intent.
type IntentStatus string

const (
	IntentRequiresPayment IntentStatus = "requires_payment"
	IntentProcessing      IntentStatus = "processing"
	IntentSucceeded       IntentStatus = "succeeded"
	IntentFailed          IntentStatus = "failed"
	IntentCanceled        IntentStatus = "canceled"
)

// IntentRequest asks the processor to create a payment intent.
type IntentRequest struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

// Intent is the processor's view of a payment attempt.
type Intent struct {
	ID             string
	ClientSecret   string
	Amount         int64
	Currency       string
	Status         IntentStatus
	Metadata       map[string]string
	FailureMessage string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}
