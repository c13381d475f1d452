package models

import "time"

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderProcessing    OrderStatus = "processing"
	OrderVerified      OrderStatus = "verified"
	OrderShipped       OrderStatus = "shipped"
	OrderDelivered     OrderStatus = "delivered"
	OrderRefundPending OrderStatus = "refund_pending"
	OrderRefunded      OrderStatus = "refunded"
	OrderCancelled     OrderStatus = "cancelled"
)

// IsTerminal 是否为终态
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderDelivered, OrderRefunded, OrderCancelled:
		return true
	}
	return false
}

// VerificationStatus VIN 适配校验状态
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// CancellationReason 取消原因（封闭枚举）
type CancellationReason string

const (
	ReasonVINMismatch CancellationReason = "vin_mismatch"
	ReasonStockIssue  CancellationReason = "stock_issue"
	ReasonOther       CancellationReason = "other"
)

// Valid 是否为合法的取消原因
func (r CancellationReason) Valid() bool {
	switch r {
	case ReasonVINMismatch, ReasonStockIssue, ReasonOther:
		return true
	}
	return false
}

// VehicleDetails 订单上的 VIN 适配信息
type VehicleDetails struct {
	VINNumber          string             `json:"vinNumber"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	VerifiedAt         *time.Time         `json:"verifiedAt,omitempty"`
	VerifiedBy         string             `json:"verifiedBy,omitempty"`
}

// CancellationDetails 取消详情
type CancellationDetails struct {
	Reason      CancellationReason `json:"reason"`
	Description string             `json:"description,omitempty"`
	CancelledBy string             `json:"cancelledBy,omitempty"`
	CancelledAt time.Time          `json:"cancelledAt"`
}

// OrderItem 订单行
type OrderItem struct {
	ProductID  string `json:"productId"`
	VendorID   string `json:"vendorId"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
}

// Order 订单
type Order struct {
	ID                  string               `json:"id" db:"id"`
	BuyerID             string               `json:"buyerId" db:"buyer_id"`
	VendorIDs           []string             `json:"vendorIds" db:"vendor_ids"`
	Items               []OrderItem          `json:"items" db:"items"`
	TotalCents          int64                `json:"totalCents" db:"total_cents"`
	Status              OrderStatus          `json:"status" db:"status"`
	PaymentStatus       PaymentStatus        `json:"paymentStatus" db:"payment_status"`
	VehicleDetails      *VehicleDetails      `json:"vehicleDetails,omitempty" db:"vehicle_details"`
	CancellationReason  CancellationReason   `json:"cancellationReason,omitempty" db:"cancellation_reason"`
	CancellationDetails *CancellationDetails `json:"cancellationDetails,omitempty" db:"cancellation_details"`
	ShippedAt           *time.Time           `json:"shippedAt,omitempty" db:"shipped_at"`
	DeliveredAt         *time.Time           `json:"deliveredAt,omitempty" db:"delivered_at"`
	RefundedAt          *time.Time           `json:"refundedAt,omitempty" db:"refunded_at"`
	RefundedBy          string               `json:"refundedBy,omitempty" db:"refunded_by"`
	CreatedAt           time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time            `json:"updatedAt" db:"updated_at"`
}

// HasVendor 判断供应商是否参与该订单：vendorIds 包含或任一订单行属于该供应商
func (o *Order) HasVendor(vendorID string) bool {
	if vendorID == "" {
		return false
	}
	for _, id := range o.VendorIDs {
		if id == vendorID {
			return true
		}
	}
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			return true
		}
	}
	return false
}

// Clone 深拷贝订单，状态转换在副本上进行
func (o *Order) Clone() *Order {
	c := *o
	c.VendorIDs = append([]string(nil), o.VendorIDs...)
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.VehicleDetails != nil {
		vd := *o.VehicleDetails
		if vd.VerifiedAt != nil {
			t := *vd.VerifiedAt
			vd.VerifiedAt = &t
		}
		c.VehicleDetails = &vd
	}
	if o.CancellationDetails != nil {
		cd := *o.CancellationDetails
		c.CancellationDetails = &cd
	}
	c.ShippedAt = copyTime(o.ShippedAt)
	c.DeliveredAt = copyTime(o.DeliveredAt)
	c.RefundedAt = copyTime(o.RefundedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
