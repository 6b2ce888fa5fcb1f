// Package admin binds the synchronization engine to the shop's record store:
// the record types of each admin screen, the typed actions an admin can
// take on them, and the stores that fetch pages and dispatch actions.
package admin

import (
	"strings"
	"time"
)

// Order is a row of the orders screen.
type Order struct {
	OrderID        ID             `json:"orderId"`
	UserName       string         `json:"userName"`
	UserEmail      string         `json:"userEmail"`
	PayableAmount  Amount         `json:"payableAmount"`
	PaymentMethod  string         `json:"paymentMethod"`
	Status         OrderStatus    `json:"status"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
}

// RecordID returns the order id.
func (o Order) RecordID() string { return string(o.OrderID) }

// StatusEditable reports whether the payment status may be changed by an
// admin. Only cash-on-delivery payments are settled manually.
func (o Order) StatusEditable() bool {
	return strings.EqualFold(o.PaymentMethod, "COD")
}

// OrderItem is a line of an order.
type OrderItem struct {
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image"`
	Quantity     int    `json:"quantity,omitempty"`
	Price        Amount `json:"price,omitempty"`
}

// OrderDetail is the full view of one order.
type OrderDetail struct {
	OrderID         ID             `json:"orderId"`
	CustomerName    string         `json:"customerName"`
	CustomerEmail   string         `json:"customerEmail"`
	CustomerPhone   string         `json:"customerPhone"`
	ShippingAddress string         `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	Status          OrderStatus    `json:"status"`
	DeliveryStatus  DeliveryStatus `json:"deliveryStatus"`
	CreatedAt       time.Time      `json:"createdAt"`
	TotalAmount     Amount         `json:"totalAmount"`
	Discount        Amount         `json:"discount"`
	DeliveryFee     Amount         `json:"deliveryFee"`
	PayableAmount   Amount         `json:"payableAmount"`
	Items           []OrderItem    `json:"items"`
}

// Product is a row of the products screen.
type Product struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Price       Amount     `json:"price"`
	Stock       Amount     `json:"stock"`
	MainImage   string     `json:"main_image"`
	Images      StringList `json:"image"`
}

// RecordID returns the product id.
func (p Product) RecordID() string { return string(p.ID) }

// User is a row of the users screen.
type User struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Gender  string `json:"gender"`
	Profile string `json:"profile"`
	Status  string `json:"status"`
}

// RecordID returns the user id.
func (u User) RecordID() string { return string(u.ID) }

// CancelRequest is a pending order cancellation.
type CancelRequest struct {
	OrderID         ID     `json:"order_id"`
	UserName        string `json:"user_name"`
	UserEmail       string `json:"user_email"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	ShippingAddress string `json:"shipping_address"`
	TotalAmount     Amount `json:"total_amount"`
	PayableAmount   Amount `json:"payable_amount"`
	PaymentMethod   string `json:"payment_method"`
	Status          string `json:"cancel_request_status"`
}

// RecordID returns the order id the request refers to.
func (r CancelRequest) RecordID() string { return string(r.OrderID) }
