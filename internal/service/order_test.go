package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/partfit/internal/events"
	"github.com/langchou/partfit/internal/models"
	"github.com/langchou/partfit/internal/state"
)

var (
	buyer   = models.Actor{ID: "buyer-1", Role: models.RoleBuyer}
	vendor1 = models.Actor{ID: "vendor-1", Role: models.RoleVendor}
	vendor2 = models.Actor{ID: "vendor-2", Role: models.RoleVendor}
	admin   = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
)

type orderFixture struct {
	svc    *OrderService
	store  *fakeOrders
	events []events.OrderEvent
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	catalog, _, _ := newTestCatalog(t, nil)
	bus := events.NewBus(nil, zap.NewNop())
	fx := &orderFixture{store: newFakeOrders()}
	unsubscribe, err := events.Subscribe(bus, events.SubjectOrderUpdated, func(_ context.Context, e events.OrderEvent) {
		fx.events = append(fx.events, e)
	})
	require.NoError(t, err)
	t.Cleanup(unsubscribe)

	fx.svc = NewOrderService(zap.NewNop(), fx.store, catalog, bus)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return fixed }
	return fx
}

func (fx *orderFixture) checkout(t *testing.T, vin string) *models.Order {
	t.Helper()
	o, err := fx.svc.Checkout(context.Background(), buyer, CheckoutRequest{
		Items: []CheckoutItem{{ProductID: "p1", Quantity: 2}},
		VIN:   vin,
	})
	require.NoError(t, err)
	return o
}

func TestCheckout(t *testing.T) {
	fx := newOrderFixture(t)
	o := fx.checkout(t, "jhm-ge8h59 dc000001")

	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, models.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, int64(5000), o.TotalCents)
	assert.Equal(t, []string{"vendor-1"}, o.VendorIDs)
	require.NotNil(t, o.VehicleDetails)
	assert.Equal(t, "JHMGE8H59DC000001", o.VehicleDetails.VINNumber)
	assert.Equal(t, models.VerificationPending, o.VehicleDetails.VerificationStatus)
	require.Len(t, fx.events, 1)
	assert.Equal(t, "created", fx.events[0].Action)

	_, err := fx.svc.Checkout(context.Background(), vendor1, CheckoutRequest{Items: []CheckoutItem{{ProductID: "p1", Quantity: 1}}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = fx.svc.Checkout(context.Background(), buyer, CheckoutRequest{Items: []CheckoutItem{{ProductID: "p1", Quantity: 1}}, VIN: "bad"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = fx.svc.Checkout(context.Background(), buyer, CheckoutRequest{Items: []CheckoutItem{{ProductID: "nope", Quantity: 1}}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFitmentVerificationLifecycle(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()
	o := fx.checkout(t, "JHMGE8H59DC000001")

	_, err := fx.svc.Ship(ctx, vendor1, o.ID)
	assert.ErrorIs(t, err, state.ErrShipBlocked)

	o, err = fx.svc.Accept(ctx, vendor1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, o.Status)

	o, err = fx.svc.VerifyFitment(ctx, vendor1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderVerified, o.Status)
	assert.Equal(t, models.VerificationVerified, o.VehicleDetails.VerificationStatus)
	assert.Equal(t, "vendor-1", o.VehicleDetails.VerifiedBy)

	o, err = fx.svc.Ship(ctx, vendor1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, o.Status)

	o, err = fx.svc.Deliver(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, o.Status)

	_, err = fx.svc.CancelOrder(ctx, admin, o.ID, models.ReasonOther, "")
	var te *state.TransitionError
	assert.ErrorAs(t, err, &te)
}

func TestRejectFitmentRoutesToRefund(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()
	o := fx.checkout(t, "JHMGE8H59DC000001")

	_, err := fx.svc.RejectFitment(ctx, vendor1, o.ID, "", "")
	assert.ErrorIs(t, err, state.ErrReasonRequired)

	o, err = fx.svc.RejectFitment(ctx, vendor1, o.ID, models.ReasonVINMismatch, "wrong chassis")
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefundPending, o.Status)
	assert.Equal(t, models.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, models.ReasonVINMismatch, o.CancellationReason)

	_, err = fx.svc.MarkOrderRefunded(ctx, vendor1, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	o, err = fx.svc.MarkOrderRefunded(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefunded, o.Status)
	assert.Equal(t, models.PaymentRefunded, o.PaymentStatus)

	_, err = fx.svc.Ship(ctx, vendor1, o.ID)
	assert.ErrorIs(t, err, state.ErrTerminal)
}

func TestOrderVisibilityAndAuthorization(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()
	o := fx.checkout(t, "")

	_, err := fx.svc.Get(ctx, vendor2, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fx.svc.Accept(ctx, vendor2, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fx.svc.Accept(ctx, buyer, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := fx.svc.List(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := fx.svc.List(ctx, vendor2)
	require.NoError(t, err)
	assert.Empty(t, theirs)
	all, err := fx.svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// 没有 VIN 的订单可以直接发货
	shipped, err := fx.svc.Ship(ctx, vendor1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, shipped.Status)
}

func TestPersistFailurePublishesNothing(t *testing.T) {
	fx := newOrderFixture(t)
	ctx := context.Background()
	o := fx.checkout(t, "")
	fx.events = nil
	fx.store.updateErr = errStoreDown

	_, err := fx.svc.Accept(ctx, vendor1, o.ID)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, fx.events)

	stored, err := fx.svc.Get(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, stored.Status)
}
