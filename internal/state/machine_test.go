package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/partfit/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func vinOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:            "o1",
		BuyerID:       "buyer",
		VendorIDs:     []string{"vendor"},
		Status:        status,
		PaymentStatus: models.PaymentPaid,
		VehicleDetails: &models.VehicleDetails{
			VINNumber:          "1HGCM82633A004352",
			VerificationStatus: models.VerificationPending,
		},
	}
}

func plainOrder(status models.OrderStatus) *models.Order {
	o := vinOrder(status)
	o.VehicleDetails = nil
	return o
}

func TestFitmentGuard(t *testing.T) {
	pending := vinOrder(models.OrderPending)
	assert.False(t, CanShip(pending))
	_, err := Ship(pending, now)
	assert.ErrorIs(t, err, ErrShipBlocked)
	assert.Equal(t, models.OrderPending, pending.Status)

	verified, err := VerifyFitment(pending, models.VerificationVerified, "vendor", now)
	require.NoError(t, err)
	assert.True(t, CanShip(verified))
	shipped, err := Ship(verified, now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)

	noVIN := plainOrder(models.OrderPending)
	assert.True(t, CanShip(noVIN))
	shipped, err = Ship(noVIN, now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, shipped.Status)
}

func TestVerifyFitment(t *testing.T) {
	o := vinOrder(models.OrderProcessing)

	out, err := VerifyFitment(o, models.VerificationVerified, "vendor", now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderVerified, out.Status)
	assert.Equal(t, models.VerificationVerified, out.VehicleDetails.VerificationStatus)
	require.NotNil(t, out.VehicleDetails.VerifiedAt)
	assert.Equal(t, now, *out.VehicleDetails.VerifiedAt)
	assert.Equal(t, "vendor", out.VehicleDetails.VerifiedBy)

	// 原订单不变
	assert.Equal(t, models.OrderProcessing, o.Status)
	assert.Equal(t, models.VerificationPending, o.VehicleDetails.VerificationStatus)

	_, err = VerifyFitment(o, models.VerificationFailed, "vendor", now)
	assert.ErrorIs(t, err, ErrUseRejectFitment)

	_, err = VerifyFitment(plainOrder(models.OrderProcessing), models.VerificationVerified, "vendor", now)
	assert.ErrorIs(t, err, ErrNoVehicleDetails)

	_, err = VerifyFitment(out, models.VerificationVerified, "vendor", now)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.OrderVerified, te.From)
	assert.Equal(t, EventVerify, te.Event)
}

func TestCancellationIsMandatoryReasoned(t *testing.T) {
	o := vinOrder(models.OrderPending)

	_, err := CancelOrder(o, "", "", "vendor", now)
	assert.ErrorIs(t, err, ErrReasonRequired)
	_, err = CancelOrder(o, "changed_mind", "", "vendor", now)
	assert.ErrorIs(t, err, ErrInvalidReason)
	assert.Equal(t, models.OrderPending, o.Status)
	assert.Nil(t, o.CancellationDetails)

	out, err := CancelOrder(o, models.ReasonVINMismatch, "wrong chassis", "vendor", now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefundPending, out.Status)
	assert.Equal(t, models.ReasonVINMismatch, out.CancellationReason)
	require.NotNil(t, out.CancellationDetails)
	assert.Equal(t, models.ReasonVINMismatch, out.CancellationDetails.Reason)
	assert.Equal(t, "wrong chassis", out.CancellationDetails.Description)
	assert.Equal(t, models.PaymentPaid, out.PaymentStatus)
}

func TestRejectFitmentRoutesThroughCancellation(t *testing.T) {
	o := vinOrder(models.OrderProcessing)

	_, err := RejectFitment(o, "", "", "vendor", now)
	assert.ErrorIs(t, err, ErrReasonRequired)

	out, err := RejectFitment(o, models.ReasonOther, "", "vendor", now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefundPending, out.Status)
	assert.Equal(t, models.VerificationPending, out.VehicleDetails.VerificationStatus)

	_, err = RejectFitment(plainOrder(models.OrderProcessing), models.ReasonOther, "", "vendor", now)
	assert.ErrorIs(t, err, ErrNoVehicleDetails)
}

func TestRefundTerminality(t *testing.T) {
	o, err := CancelOrder(vinOrder(models.OrderPending), models.ReasonStockIssue, "", "vendor", now)
	require.NoError(t, err)

	// refund_pending 之后只允许退款
	_, err = VerifyFitment(o, models.VerificationVerified, "vendor", now)
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = RejectFitment(o, models.ReasonVINMismatch, "", "vendor", now)
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = CancelOrder(o, models.ReasonOther, "", "vendor", now)
	assert.ErrorIs(t, err, ErrTerminal)

	_, err = MarkRefunded(o, "", now)
	assert.ErrorIs(t, err, ErrActorRequired)

	refunded, err := MarkRefunded(o, "admin", now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefunded, refunded.Status)
	assert.Equal(t, models.PaymentRefunded, refunded.PaymentStatus)
	assert.Equal(t, "admin", refunded.RefundedBy)
	require.NotNil(t, refunded.RefundedAt)

	for name, fn := range map[string]func(*models.Order) error{
		"verify": func(o *models.Order) error {
			_, err := VerifyFitment(o, models.VerificationVerified, "vendor", now)
			return err
		},
		"reject": func(o *models.Order) error {
			_, err := RejectFitment(o, models.ReasonOther, "", "vendor", now)
			return err
		},
		"cancel": func(o *models.Order) error {
			_, err := CancelOrder(o, models.ReasonOther, "", "vendor", now)
			return err
		},
		"refund": func(o *models.Order) error {
			_, err := MarkRefunded(o, "admin", now)
			return err
		},
		"ship": func(o *models.Order) error {
			_, err := Ship(o, now)
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fn(refunded), ErrTerminal)
		})
	}
}

func TestLifecycleAcceptShipDeliver(t *testing.T) {
	o := plainOrder(models.OrderPending)

	accepted, err := Accept(o, now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, accepted.Status)

	_, err = Accept(accepted, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Deliver(accepted, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	shipped, err := Ship(accepted, now)
	require.NoError(t, err)
	delivered, err := Deliver(shipped, now)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	_, err = CancelOrder(delivered, models.ReasonOther, "", "vendor", now)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestAllowedActions(t *testing.T) {
	tests := []struct {
		name  string
		order *models.Order
		want  []string
	}{
		{name: "pending with VIN", order: vinOrder(models.OrderPending), want: []string{EventAccept, EventCancel, EventVerify}},
		{name: "pending without VIN", order: plainOrder(models.OrderPending), want: []string{EventAccept, EventCancel, EventShip}},
		{name: "refund pending", order: vinOrder(models.OrderRefundPending), want: []string{EventRefund}},
		{name: "refunded", order: vinOrder(models.OrderRefunded), want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedActions(tt.order))
		})
	}
}
