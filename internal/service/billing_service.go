package service

import (
	"context"
	"encoding/json"
	"time"

	"doclens/internal/apperror"
	"doclens/internal/auth"
	"doclens/internal/config"
	"doclens/internal/model"
	"doclens/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

// BillingService owns the Stripe integration: checkout session creation
// and webhook-driven role reconciliation.
type BillingService interface {
	// CreateCheckoutSession creates a provider-hosted checkout session for
	// the fixed subscription price and returns its redirect URL. No local
	// state is written; the webhook owns all Role Store mutations.
	CreateCheckoutSession(ctx context.Context, identity *auth.Identity) (string, error)
	// HandleEvent applies a verified Stripe event to the Role Store. Every
	// transition is an idempotent upsert keyed on user_id, so redelivery of
	// the same event is safe.
	HandleEvent(ctx context.Context, event stripe.Event) error
}

type billingService struct {
	cfg      *config.Config
	stripe   StripeClient
	roleRepo repository.RoleRepository
	logger   zerolog.Logger
}

// NewBillingService creates a BillingService around an injected Stripe
// client. Nothing here sets the SDK's package-level key.
func NewBillingService(cfg *config.Config, stripeClient StripeClient, roleRepo repository.RoleRepository, logger zerolog.Logger) BillingService {
	return &billingService{
		cfg:      cfg,
		stripe:   stripeClient,
		roleRepo: roleRepo,
		logger:   logger.With().Str("service", "BillingService").Logger(),
	}
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, identity *auth.Identity) (string, error) {
	// Config is guarded before any network call so a misconfigured server
	// answers with a structured 500 instead of a provider error.
	if missing := s.cfg.MissingCheckoutConfig(); len(missing) > 0 {
		s.logger.Error().Strs("missing", missing).Msg("Checkout configuration incomplete")
		return "", apperror.ConfigurationMissing(missing...)
	}

	// Bound the provider call so a hung upstream cannot pin the handler.
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckoutTimeout())
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(s.cfg.StripePriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(s.cfg.SiteURL + "/dashboard?checkout=success"),
		CancelURL:  stripe.String(s.cfg.SiteURL + "/dashboard?checkout=cancel"),
		Metadata: map[string]string{
			"user_id":   identity.UserID,
			"auth_path": identity.Path,
		},
	}
	sess, err := s.stripe.NewCheckoutSession(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to create Stripe checkout session")
		return "", apperror.UpstreamFailure("failed to create checkout session", err)
	}

	s.logger.Info().
		Str("user_id", identity.UserID).
		Str("auth_path", identity.Path).
		Str("session_id", sess.ID).
		Msg("Checkout session created")
	return sess.URL, nil
}

func (s *billingService) HandleEvent(ctx context.Context, event stripe.Event) error {
	s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Stripe webhook event received")

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session payload")
			return apperror.InvalidInput("invalid checkout.session payload")
		}
		userID := cs.Metadata["user_id"]
		if userID == "" {
			// Acknowledge so the provider does not redeliver forever.
			s.logger.Warn().Str("session_id", cs.ID).Msg("Checkout session has no user_id metadata, skipping")
			return nil
		}

		var expiresAt *time.Time
		if cs.Subscription != nil && cs.Subscription.ID != "" {
			sub, err := s.stripe.GetSubscription(cs.Subscription.ID, nil)
			if err != nil {
				s.logger.Error().Err(err).Str("subscription_id", cs.Subscription.ID).Msg("Failed to fetch subscription for period end")
				return apperror.UpstreamFailure("failed to fetch subscription details", err)
			}
			expiresAt = periodEnd(sub)
		}
		return s.upsertRole(ctx, userID, model.RolePro, expiresAt, event.Type)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logger.Error().Err(err).Msg("Invalid subscription payload")
			return apperror.InvalidInput("invalid subscription payload")
		}
		userID := sub.Metadata["user_id"]
		if userID == "" {
			s.logger.Warn().Str("subscription_id", sub.ID).Msg("Subscription has no user_id metadata, skipping")
			return nil
		}

		// Only an active subscription grants pro; anything else (past_due,
		// canceled, unpaid, ...) reads as free with no expiry.
		role := model.RoleFree
		var expiresAt *time.Time
		if sub.Status == stripe.SubscriptionStatusActive {
			role = model.RolePro
			expiresAt = periodEnd(&sub)
		}
		return s.upsertRole(ctx, userID, role, expiresAt, event.Type)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logger.Error().Err(err).Msg("Invalid subscription payload")
			return apperror.InvalidInput("invalid subscription payload")
		}
		userID := sub.Metadata["user_id"]
		if userID == "" {
			s.logger.Warn().Str("subscription_id", sub.ID).Msg("Subscription has no user_id metadata, skipping")
			return nil
		}
		return s.upsertRole(ctx, userID, model.RoleFree, nil, event.Type)

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Ignoring unhandled Stripe event")
		return nil
	}
}

func (s *billingService) upsertRole(ctx context.Context, userID, role string, expiresAt *time.Time, eventType stripe.EventType) error {
	if err := s.roleRepo.Upsert(ctx, userID, role, expiresAt); err != nil {
		// Surfaced as 500 so the provider redelivers.
		s.logger.Error().Err(err).Str("user_id", userID).Str("role", role).Msg("Failed to upsert role")
		return apperror.UpstreamFailure("failed to update subscription role", err)
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("role", role).
		Str("event_type", string(eventType)).
		Msg("Role reconciled")
	return nil
}

// periodEnd extracts the current billing-period end from the first
// subscription item, or nil when none is known.
func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	item := sub.Items.Data[0]
	if item.CurrentPeriodEnd == 0 {
		return nil
	}
	end := time.Unix(item.CurrentPeriodEnd, 0)
	return &end
}
