package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/gateway"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	payments    map[string]*gateway.Payment
	getCalls    int
	preferences []*gateway.PreferenceRequest
}

func (f *fakeGateway) CreatePreference(_ context.Context, req *gateway.PreferenceRequest) (*gateway.Preference, error) {
	f.preferences = append(f.preferences, req)
	return &gateway.Preference{ID: "pref-1", InitPoint: "https://gateway.test/checkout/pref-1"}, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, paymentID string) (*gateway.Payment, error) {
	f.getCalls++
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return p, nil
}

type fakeNotificationStore struct {
	mu       sync.Mutex
	seen     map[string]string
	statuses map[string]string
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{seen: map[string]string{}, statuses: map[string]string{}}
}

func (f *fakeNotificationStore) MarkNotificationProcessed(_ context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[paymentID]; ok {
		return false, nil
	}
	f.seen[paymentID] = "received"
	return true, nil
}

func (f *fakeNotificationStore) SetNotificationStatus(_ context.Context, paymentID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[paymentID] = status
	return nil
}

type fakePaymentEvents struct {
	approved []*models.PaymentApprovedEvent
	rejected []*models.PaymentRejectedEvent
}

func (f *fakePaymentEvents) PublishPaymentApproved(_ context.Context, e *models.PaymentApprovedEvent) error {
	f.approved = append(f.approved, e)
	return nil
}

func (f *fakePaymentEvents) PublishPaymentRejected(_ context.Context, e *models.PaymentRejectedEvent) error {
	f.rejected = append(f.rejected, e)
	return nil
}

func approvedPayment() *gateway.Payment {
	return &gateway.Payment{
		ID:                "12345",
		Status:            models.PaymentStatusApproved,
		ExternalReference: "9f2d4c8a-1b3e-4f5a-8c7d-2e1f0a9b8c7d",
		PayerEmail:        "ana@example.com",
		Amount:            5000,
	}
}

func newTestPaymentService(gw *fakeGateway, st *fakeNotificationStore, events *fakePaymentEvents, mailer *fakeMailer) *PaymentService {
	var ev PaymentEvents
	if events != nil {
		ev = events
	}
	var m Mailer
	if mailer != nil {
		m = mailer
	}
	return NewPaymentService(gw, st, nil, ev, m,
		"https://shop.example.com", "admin@example.com")
}

func TestHandleNotification_ApprovedSendsEmailsAndEvent(t *testing.T) {
	gw := &fakeGateway{payments: map[string]*gateway.Payment{"12345": approvedPayment()}}
	st := newFakeNotificationStore()
	events := &fakePaymentEvents{}
	mailer := &fakeMailer{}
	svc := newTestPaymentService(gw, st, events, mailer)

	payment, err := svc.HandleNotification(context.Background(), "payment", "12345")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, models.PaymentStatusApproved, payment.Status)

	assert.Equal(t, models.PaymentStatusApproved, st.statuses["12345"])

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "ana@example.com", mailer.sent[0].to)
	assert.Equal(t, "admin@example.com", mailer.sent[1].to)

	require.Len(t, events.approved, 1)
	assert.Equal(t, "9f2d4c8a-1b3e-4f5a-8c7d-2e1f0a9b8c7d", events.approved[0].CheckoutID)
}

func TestHandleNotification_DuplicateDeliverySendsNothing(t *testing.T) {
	gw := &fakeGateway{payments: map[string]*gateway.Payment{"12345": approvedPayment()}}
	st := newFakeNotificationStore()
	events := &fakePaymentEvents{}
	mailer := &fakeMailer{}
	svc := newTestPaymentService(gw, st, events, mailer)
	ctx := context.Background()

	_, err := svc.HandleNotification(ctx, "payment", "12345")
	require.NoError(t, err)

	payment, err := svc.HandleNotification(ctx, "payment", "12345")
	require.NoError(t, err)
	assert.Nil(t, payment, "duplicate deliveries report nothing to act on")

	assert.Len(t, mailer.sent, 2, "emails go out once, not per delivery")
	assert.Len(t, events.approved, 1)
}

func TestHandleNotification_IgnoresOtherTopics(t *testing.T) {
	gw := &fakeGateway{payments: map[string]*gateway.Payment{}}
	svc := newTestPaymentService(gw, newFakeNotificationStore(), nil, nil)

	payment, err := svc.HandleNotification(context.Background(), "merchant_order", "999")
	require.NoError(t, err)
	assert.Nil(t, payment)
	assert.Zero(t, gw.getCalls, "ignored topics never hit the gateway")

	payment, err = svc.HandleNotification(context.Background(), "payment", "")
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestHandleNotification_GatewayFailureLeavesDeliveryUnclaimed(t *testing.T) {
	gw := &fakeGateway{payments: map[string]*gateway.Payment{}}
	st := newFakeNotificationStore()
	svc := newTestPaymentService(gw, st, nil, nil)

	_, err := svc.HandleNotification(context.Background(), "payment", "12345")
	require.Error(t, err)
	assert.Empty(t, st.seen, "failed reconciliation must not consume the dedup slot")

	// The gateway recovers; the retry processes normally.
	gw.payments["12345"] = approvedPayment()
	payment, err := svc.HandleNotification(context.Background(), "payment", "12345")
	require.NoError(t, err)
	assert.NotNil(t, payment)
}

func TestHandleNotification_RejectedPublishesRejection(t *testing.T) {
	rejected := approvedPayment()
	rejected.Status = models.PaymentStatusRejected
	gw := &fakeGateway{payments: map[string]*gateway.Payment{"12345": rejected}}
	events := &fakePaymentEvents{}
	mailer := &fakeMailer{}
	svc := newTestPaymentService(gw, newFakeNotificationStore(), events, mailer)

	payment, err := svc.HandleNotification(context.Background(), "payment", "12345")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, payment.Status)

	assert.Empty(t, mailer.sent, "no emails for rejected payments")
	assert.Empty(t, events.approved)
	require.Len(t, events.rejected, 1)
}

func TestCreateCheckoutPreference_CarriesCheckoutReference(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestPaymentService(gw, newFakeNotificationStore(), nil, nil)

	lines := []cart.Line{
		{Product: models.Product{ID: 7, Name: "Mate Imperial"}, Quantity: 2, UnitPrice: 2500},
		{Product: models.Product{ID: 8, Name: "Bombilla"}, Quantity: 1, UnitPrice: 800},
	}
	pref, err := svc.CreateCheckoutPreference(context.Background(),
		"9f2d4c8a-1b3e-4f5a-8c7d-2e1f0a9b8c7d", lines, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.test/checkout/pref-1", pref.InitPoint)

	require.Len(t, gw.preferences, 1)
	req := gw.preferences[0]
	assert.Equal(t, "9f2d4c8a-1b3e-4f5a-8c7d-2e1f0a9b8c7d", req.ExternalReference)
	assert.Equal(t, "https://shop.example.com/api/v1/payments/webhook", req.NotificationURL)
	require.Len(t, req.Items, 2)
	assert.Equal(t, int64(2500), req.Items[0].UnitPrice)
}

func TestCreateCheckoutPreference_RejectsUnpricedLines(t *testing.T) {
	svc := newTestPaymentService(&fakeGateway{}, newFakeNotificationStore(), nil, nil)

	_, err := svc.CreateCheckoutPreference(context.Background(), "c-1", []cart.Line{
		{Product: models.Product{ID: 7, Name: "Mate Imperial"}, Quantity: 1, UnitPrice: 0},
	}, "")
	assert.Error(t, err)

	_, err = svc.CreateCheckoutPreference(context.Background(), "c-1", nil, "")
	assert.Error(t, err)
}

func TestCreateProductPreference_UsesSalePrice(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestPaymentService(gw, newFakeNotificationStore(), nil, nil)

	product := &models.Product{ID: 8, Name: "Bombilla", Price: 1000, IsSale: true, SalePrice: 800}
	_, err := svc.CreateProductPreference(context.Background(), product, "")
	require.NoError(t, err)

	require.Len(t, gw.preferences, 1)
	req := gw.preferences[0]
	assert.Equal(t, "product-8", req.ExternalReference)
	require.Len(t, req.Items, 1)
	assert.Equal(t, int64(800), req.Items[0].UnitPrice)

	free := &models.Product{ID: 9, Name: "Folleto", Price: 0}
	_, err = svc.CreateProductPreference(context.Background(), free, "")
	assert.Error(t, err)
}
