package admin

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidValue is returned when a status or decision is not one of the
// values the store accepts.
var ErrInvalidValue = errors.New("invalid value")

// OrderStatus is the payment status of an order.
type OrderStatus string

// Payment statuses.
const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// OrderStatuses lists the payment statuses in display order.
var OrderStatuses = []OrderStatus{OrderPending, OrderPaid, OrderCancelled, OrderRefunded}

// ParseOrderStatus validates s case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range OrderStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: order status %q", ErrInvalidValue, s)
}

// DeliveryStatus is the fulfilment stage of an order.
type DeliveryStatus string

// Delivery stages.
const (
	DeliveryOrderPlaced    DeliveryStatus = "Order Placed"
	DeliveryProcessing     DeliveryStatus = "Processing"
	DeliveryPacked         DeliveryStatus = "Packed"
	DeliveryOutForDelivery DeliveryStatus = "Out for Delivery"
	DeliveryDelivered      DeliveryStatus = "Delivered"
	DeliveryCancelled      DeliveryStatus = "Cancelled"
)

// DeliveryStatuses lists the delivery stages in fulfilment order.
var DeliveryStatuses = []DeliveryStatus{
	DeliveryOrderPlaced,
	DeliveryProcessing,
	DeliveryPacked,
	DeliveryOutForDelivery,
	DeliveryDelivered,
	DeliveryCancelled,
}

// ParseDeliveryStatus validates s case-insensitively.
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	for _, st := range DeliveryStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: delivery status %q", ErrInvalidValue, s)
}

// Decision is the outcome of a cancel request.
type Decision string

// Cancel request decisions.
const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// ParseDecision validates s case-insensitively.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(s) {
	case string(Approve):
		return Approve, nil
	case string(Reject):
		return Reject, nil
	}
	return "", fmt.Errorf("%w: decision %q", ErrInvalidValue, s)
}
