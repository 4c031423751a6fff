package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the lifecycle state of a local order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// PaymentStatus is the payment state of a local order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// OrderItem is a product line on an order.
type OrderItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Price    float64            `bson:"price" json:"price"`
}

// Order is the durable record of a verified payment. RazorpayPaymentID is
// unique across orders; it is the idempotency key for payment confirmation.
type Order struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User              primitive.ObjectID `bson:"user" json:"user"`
	Products          []OrderItem        `bson:"products" json:"products"`
	TotalAmount       float64            `bson:"totalAmount" json:"totalAmount"`
	RazorpayOrderID   string             `bson:"razorpayOrderId" json:"razorpayOrderId"`
	RazorpayPaymentID string             `bson:"razorpayPaymentId" json:"razorpayPaymentId"`
	RefundID          string             `bson:"refundId,omitempty" json:"refundId,omitempty"`
	Status            OrderStatus        `bson:"status" json:"status"`
	PaymentStatus     PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
}
