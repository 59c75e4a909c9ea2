package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"catalyst/internal/config"
	"catalyst/internal/metrics"
	"catalyst/internal/model"
	"catalyst/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeService sells credit packs through Stripe Checkout.
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	subRepo  repository.SubscriptionRepository
	credits  repository.CreditRepository
	notify   NotifyService
	logger   zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a scoped logger.
func NewStripeService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	subRepo repository.SubscriptionRepository,
	credits repository.CreditRepository,
	notify NotifyService,
	logger zerolog.Logger,
) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	return &StripeService{
		cfg:      cfg,
		userRepo: userRepo,
		subRepo:  subRepo,
		credits:  credits,
		notify:   notify,
		logger:   logger.With().Str("service", "StripeService").Logger(),
	}
}

// getOrCreateCustomer ensures a Stripe customer exists for the subscription.
func (s *StripeService) getOrCreateCustomer(ctx context.Context, user *model.User, sub *model.Subscription) (string, error) {
	if sub.StripeCustomerID != nil && *sub.StripeCustomerID != "" {
		return *sub.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": fmt.Sprintf("%d", user.ID)},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.subRepo.UpdateStripeCustomerID(ctx, sub.ID, cust.ID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to store stripe customer id")
		return "", err
	}
	return cust.ID, nil
}

// CreateCheckoutSession opens a one-time-payment checkout for a credit pack
// and records the pending purchase keyed by a fresh order number.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID int64, tierID string) (string, error) {
	tier, ok := model.TierByID(tierID)
	if !ok {
		return "", ErrUnknownTier
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch user for checkout session")
		return "", err
	}
	sub, err := s.subRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch subscription for checkout session")
		return "", err
	}
	customerID, err := s.getOrCreateCustomer(ctx, user, sub)
	if err != nil {
		return "", err
	}

	orderNo := fmt.Sprintf("ord_%s", uuid.NewString())
	if err := s.credits.CreatePendingPurchase(ctx, userID, sub.ID, orderNo, &tier); err != nil {
		s.logger.Error().Err(err).Str("order_no", orderNo).Msg("Failed to record pending purchase")
		return "", err
	}

	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("cny"),
				UnitAmount: stripe.Int64(int64(tier.Price * 100)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(tier.Name),
					Description: stripe.String(fmt.Sprintf("%d analysis credits", tier.Credits)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:       stripe.String(stripe.CheckoutSessionModePayment),
		SuccessURL: stripe.String(s.cfg.StripeReturnURL + "?status=success"),
		CancelURL:  stripe.String(s.cfg.StripeReturnURL + "?status=cancel"),
		Metadata: map[string]string{
			"user_id":  fmt.Sprintf("%d", userID),
			"order_no": orderNo,
			"tier_id":  tier.ID,
		},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("tier", tierID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info().Int64("user_id", userID).Str("order_no", orderNo).Str("tier", tierID).Msg("Created checkout session")
	return sess.URL, nil
}

// HandleWebhook processes Stripe webhook events.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session data")
			http.Error(w, "invalid checkout.session data", http.StatusBadRequest)
			return
		}
		orderNo := cs.Metadata["order_no"]
		if orderNo == "" {
			s.logger.Error().Str("session_id", cs.ID).Msg("Missing order_no in checkout session metadata")
			http.Error(w, "missing order_no in metadata", http.StatusBadRequest)
			return
		}

		newBalance, err := s.credits.CompletePurchase(ctx, orderNo, "stripe", cs.ID)
		if err != nil {
			// Stripe retries deliveries; a second confirmation is expected, not an error.
			if errors.Is(err, repository.ErrPurchaseAlreadyCompleted) {
				s.logger.Info().Str("order_no", orderNo).Msg("Purchase already completed, ignoring duplicate webhook")
				w.WriteHeader(http.StatusOK)
				return
			}
			s.logger.Error().Err(err).Str("order_no", orderNo).Msg("Failed to complete purchase")
			http.Error(w, "failed to complete purchase", http.StatusInternalServerError)
			return
		}

		tier, _ := model.TierByID(cs.Metadata["tier_id"])
		metrics.CreditsGrantedTotal.WithLabelValues("purchase").Add(float64(tier.Credits))
		s.notify.PurchaseCompleted(ctx, cs.CustomerEmail, tier.Credits, newBalance, orderNo)
		s.logger.Info().
			Str("order_no", orderNo).
			Int("credits", tier.Credits).
			Int("new_balance", newBalance).
			Msg("Completed credit purchase")

	case "checkout.session.expired":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err == nil {
			s.logger.Info().Str("order_no", cs.Metadata["order_no"]).Msg("Checkout session expired, purchase stays pending")
		}

	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}

	w.WriteHeader(http.StatusOK)
}
