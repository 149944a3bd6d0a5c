package handler

import (
	"io"
	"net/http"

	"doclens/internal/api/v1/dto"
	"doclens/internal/apperror"
	"doclens/internal/config"
	"doclens/internal/middleware"
	"doclens/internal/service"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82/webhook"
)

// maxWebhookBytes bounds webhook reads so a bad actor cannot stream an
// unbounded body at the verifier.
const maxWebhookBytes = 65536

// BillingHandler handles checkout initiation and the billing webhook.
type BillingHandler struct {
	cfg        *config.Config
	billingSvc service.BillingService
	logger     zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(cfg *config.Config, billingSvc service.BillingService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{cfg: cfg, billingSvc: billingSvc, logger: logger}
}

// RegisterRoutes mounts the billing endpoints. The checkout route requires
// auth; the webhook authenticates by signature instead.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/api/create-checkout-session", authMw(http.HandlerFunc(h.CreateCheckoutSession)))
	mux.Handle("/api/webhook", http.HandlerFunc(h.Webhook))
}

// CreateCheckoutSession godoc
// @Summary Initiate a hosted checkout session for the pro upgrade
// @Description Creates a provider-hosted checkout session and returns its URL.
// @Tags billing
// @Produce json
// @Success 200 {object} dto.CheckoutSessionResponseDTO
// @Failure 401 {object} map[string]string "unauthenticated"
// @Failure 405 {object} map[string]string "method not allowed"
// @Failure 500 {object} map[string]string "billing configuration missing"
// @Router /api/create-checkout-session [post]
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, apperror.UnsupportedMethod("POST"))
		return
	}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, apperror.Unauthenticated("user not found in context", nil))
		return
	}

	url, err := h.billingSvc.CreateCheckoutSession(r.Context(), identity)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.CheckoutSessionResponseDTO{URL: url})
}

// Webhook godoc
// @Summary Receive billing provider events
// @Description Verifies the event signature and reconciles the caller's role.
// @Tags billing
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookAckDTO
// @Failure 400 {object} map[string]string "signature verification failed"
// @Failure 500 {object} map[string]string "role store write failed"
// @Router /api/webhook [post]
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, h.logger, apperror.UnsupportedMethod("POST"))
		return
	}

	// An unset signing secret means no event can be verified; reject rather
	// than process unverified payloads.
	if h.cfg.StripeWebhookSecret == "" {
		respondError(w, h.logger, apperror.InvalidSignature("webhook signing secret not configured", nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, h.logger, apperror.InvalidInput("failed to read request body"))
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		respondError(w, h.logger, apperror.InvalidSignature("missing Stripe-Signature header", nil))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, h.cfg.StripeWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		respondError(w, h.logger, apperror.InvalidSignature("signature verification failed", err))
		return
	}

	if err := h.billingSvc.HandleEvent(r.Context(), event); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.WebhookAckDTO{Received: true})
}
