package dto

// CheckoutSessionResponseDTO carries the Stripe-hosted checkout URL
type CheckoutSessionResponseDTO struct {
	URL string `json:"url"`
}

// WebhookAckDTO acknowledges a processed webhook event
type WebhookAckDTO struct {
	Received bool `json:"received"`
}
