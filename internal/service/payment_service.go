package service

import (
	"context"
	"fmt"

	"storefront/internal/cart"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// PaymentGateway is the hosted checkout provider.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req *gateway.PreferenceRequest) (*gateway.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

// NotificationStore is the durable webhook dedup ledger.
type NotificationStore interface {
	MarkNotificationProcessed(ctx context.Context, paymentID string) (bool, error)
	SetNotificationStatus(ctx context.Context, paymentID, status string) error
}

// WebhookGuard is the fast-path duplicate check in front of the database
// ledger.
type WebhookGuard interface {
	MarkWebhookSeen(ctx context.Context, paymentID string) (bool, error)
}

// PaymentEvents publishes payment outcome events.
type PaymentEvents interface {
	PublishPaymentApproved(ctx context.Context, event *models.PaymentApprovedEvent) error
	PublishPaymentRejected(ctx context.Context, event *models.PaymentRejectedEvent) error
}

// PaymentService creates payment preferences and reconciles gateway
// webhooks.
type PaymentService struct {
	gw            PaymentGateway
	store         NotificationStore
	guard         WebhookGuard
	events        PaymentEvents
	mailer        Mailer
	publicBaseURL string
	adminEmail    string
	logger        *zap.Logger
}

// NewPaymentService creates a payment service. guard, events and mailer may
// be nil.
func NewPaymentService(gw PaymentGateway, st NotificationStore, guard WebhookGuard, events PaymentEvents, mailer Mailer, publicBaseURL, adminEmail string) *PaymentService {
	return &PaymentService{
		gw:            gw,
		store:         st,
		guard:         guard,
		events:        events,
		mailer:        mailer,
		publicBaseURL: publicBaseURL,
		adminEmail:    adminEmail,
		logger:        util.GetLogger(),
	}
}

// CreateCheckoutPreference creates a payment preference covering a whole
// checkout batch. The checkout ID rides along as the external reference so
// the webhook can find the batch again.
func (s *PaymentService) CreateCheckoutPreference(ctx context.Context, checkoutID string, lines []cart.Line, payerEmail string) (*gateway.Preference, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("checkout %s has no payable lines", checkoutID)
	}

	req := &gateway.PreferenceRequest{
		ExternalReference: checkoutID,
		PayerEmail:        payerEmail,
		BackURLs:          s.backURLs(),
		NotificationURL:   s.publicBaseURL + "/api/v1/payments/webhook",
	}
	for _, line := range lines {
		if line.UnitPrice <= 0 {
			return nil, fmt.Errorf("product %s has no payable price", line.Product.Name)
		}
		req.Items = append(req.Items, gateway.PreferenceItem{
			Title:       line.Product.Name,
			Description: line.Product.Description.String,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	pref, err := s.gw.CreatePreference(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Payment preference created",
		zap.String("checkout_id", checkoutID),
		zap.String("preference_id", pref.ID))
	return pref, nil
}

// CreateProductPreference creates a single-product payment preference, the
// buy-it-now path that skips the cart.
func (s *PaymentService) CreateProductPreference(ctx context.Context, product *models.Product, payerEmail string) (*gateway.Preference, error) {
	price := product.EffectivePrice()
	if price <= 0 {
		return nil, fmt.Errorf("product %s has no payable price", product.Name)
	}

	req := &gateway.PreferenceRequest{
		ExternalReference: fmt.Sprintf("product-%d", product.ID),
		PayerEmail:        payerEmail,
		BackURLs:          s.backURLs(),
		NotificationURL:   s.publicBaseURL + "/api/v1/payments/webhook",
		Items: []gateway.PreferenceItem{{
			Title:       product.Name,
			Description: product.Description.String,
			Quantity:    1,
			UnitPrice:   price,
		}},
	}
	return s.gw.CreatePreference(ctx, req)
}

// HandleNotification processes one gateway webhook delivery. Non-payment
// topics are ignored, duplicates are dropped before any side effect, and the
// first delivery of an approved payment triggers notification emails exactly
// once. The returned payment is nil when the delivery was ignored or a
// duplicate.
func (s *PaymentService) HandleNotification(ctx context.Context, topic, paymentID string) (*gateway.Payment, error) {
	if topic != "payment" || paymentID == "" {
		util.WebhookNotificationsTotal.WithLabelValues("ignored").Inc()
		return nil, nil
	}

	// Fetch before marking processed: a gateway hiccup must leave the
	// delivery unclaimed so the retry can succeed.
	payment, err := s.gw.GetPayment(ctx, paymentID)
	if err != nil {
		util.WebhookNotificationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to reconcile payment %s: %w", paymentID, err)
	}

	if s.guard != nil {
		fresh, err := s.guard.MarkWebhookSeen(ctx, paymentID)
		if err != nil {
			s.logger.Warn("Webhook cache guard failed", zap.Error(err))
		} else if !fresh {
			util.WebhookNotificationsTotal.WithLabelValues("duplicate").Inc()
			return nil, nil
		}
	}

	fresh, err := s.store.MarkNotificationProcessed(ctx, paymentID)
	if err != nil {
		util.WebhookNotificationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to record notification %s: %w", paymentID, err)
	}
	if !fresh {
		util.WebhookNotificationsTotal.WithLabelValues("duplicate").Inc()
		return nil, nil
	}

	if err := s.store.SetNotificationStatus(ctx, paymentID, payment.Status); err != nil {
		s.logger.Warn("Failed to record notification status",
			zap.String("payment_id", paymentID),
			zap.Error(err))
	}

	util.WebhookNotificationsTotal.WithLabelValues(payment.Status).Inc()
	s.logger.Info("Payment notification processed",
		zap.String("payment_id", paymentID),
		zap.String("status", payment.Status),
		zap.String("external_reference", payment.ExternalReference))

	if payment.Status == models.PaymentStatusApproved {
		s.notifyApproved(ctx, payment)
		s.publishApproved(ctx, payment)
	} else {
		s.publishRejected(ctx, payment)
	}
	return payment, nil
}

func (s *PaymentService) backURLs() gateway.BackURLs {
	return gateway.BackURLs{
		Success: s.publicBaseURL + "/checkout/success",
		Failure: s.publicBaseURL + "/checkout/failure",
		Pending: s.publicBaseURL + "/checkout/pending",
	}
}

func (s *PaymentService) notifyApproved(ctx context.Context, payment *gateway.Payment) {
	if s.mailer == nil {
		return
	}

	if payment.PayerEmail != "" {
		body := fmt.Sprintf(
			"We received your payment of %s.\n\nPayment ID: %s\n\nYour order is being prepared.\n",
			formatCentavos(payment.Amount), payment.ID)
		if err := s.mailer.Send(ctx, payment.PayerEmail, "Payment received", body); err != nil {
			util.EmailFailuresTotal.Inc()
			s.logger.Warn("Failed to send payer email", zap.Error(err))
		} else {
			util.EmailsSentTotal.WithLabelValues("payment_customer").Inc()
		}
	}

	if s.adminEmail != "" {
		body := fmt.Sprintf(
			"Payment %s approved.\n\nAmount: %s\nPayer: %s\nReference: %s\n",
			payment.ID, formatCentavos(payment.Amount), payment.PayerEmail, payment.ExternalReference)
		if err := s.mailer.Send(ctx, s.adminEmail, "Payment approved", body); err != nil {
			util.EmailFailuresTotal.Inc()
			s.logger.Warn("Failed to send admin payment email", zap.Error(err))
		} else {
			util.EmailsSentTotal.WithLabelValues("payment_admin").Inc()
		}
	}
}

func (s *PaymentService) publishApproved(ctx context.Context, payment *gateway.Payment) {
	if s.events == nil {
		return
	}
	event := &models.PaymentApprovedEvent{
		BaseEvent:  newBaseEvent(models.EventTypePaymentApproved),
		PaymentID:  payment.ID,
		CheckoutID: payment.ExternalReference,
		PayerEmail: payment.PayerEmail,
		Amount:     payment.Amount,
	}
	if err := s.events.PublishPaymentApproved(ctx, event); err != nil {
		s.logger.Warn("Failed to publish payment approved event", zap.Error(err))
	}
}

func (s *PaymentService) publishRejected(ctx context.Context, payment *gateway.Payment) {
	if s.events == nil {
		return
	}
	event := &models.PaymentRejectedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentRejected),
		PaymentID: payment.ID,
		Status:    payment.Status,
	}
	if err := s.events.PublishPaymentRejected(ctx, event); err != nil {
		s.logger.Warn("Failed to publish payment rejected event", zap.Error(err))
	}
}
