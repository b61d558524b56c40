package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// the marketplace API speaks plain JSON numbers for money
	decimal.MarshalJSONWithoutQuotes = true
}

type Role string

const (
	RoleBuyer   Role = "Buyer"
	RoleSeller  Role = "Seller"
	RoleAdmin   Role = "Admin"
	RolePending Role = "Pending"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Address struct {
	Street      string       `json:"street,omitempty"`
	City        string       `json:"city,omitempty"`
	Pincode     string       `json:"pincode,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.Pincode) == "" &&
		a.Coordinates == nil
}

type User struct {
	ID               string     `json:"_id"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Role             Role       `json:"role"`
	BusinessName     string     `json:"businessName,omitempty"`
	BusinessCategory string     `json:"businessCategory,omitempty"`
	GSTNumber        string     `json:"gstNumber,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Address          *Address   `json:"address,omitempty"`
	Status           UserStatus `json:"status,omitempty"`
}

// Session is the authenticated identity returned by every login-like exchange.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type Seller struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Product struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Unit     string          `json:"unit,omitempty"`
	Category string          `json:"category,omitempty"`
	Seller   *Seller         `json:"seller,omitempty"`
}

func (p Product) SellerID() string {
	if p.Seller == nil {
		return ""
	}
	return p.Seller.ID
}

type ProductInput struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Unit     string          `json:"unit"`
	Category string          `json:"category"`
}

// OrderLine is a product snapshot plus the ordered quantity; product fields are
// flattened into the line on the wire.
type OrderLine struct {
	Product
	Quantity int `json:"quantity"`
}

type OrderRequest struct {
	Cart            []OrderLine     `json:"cart"`
	SellerID        string          `json:"sellerId"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	DeliveryAddress Address         `json:"deliveryAddress"`
}

type OrderStatus string

const (
	OrderPending        OrderStatus = "Pending"
	OrderAccepted       OrderStatus = "Accepted"
	OrderDeclined       OrderStatus = "Declined"
	OrderOutForDelivery OrderStatus = "Out for Delivery"
	OrderDelivered      OrderStatus = "Delivered"
	OrderCancelled      OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	OrderPending, OrderAccepted, OrderDeclined, OrderOutForDelivery, OrderDelivered, OrderCancelled,
}

// ParseOrderStatus matches s against the known statuses ignoring case.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range orderStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

type Order struct {
	ID              string          `json:"_id"`
	Status          OrderStatus     `json:"status"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Items           []OrderLine     `json:"items,omitempty"`
	DeliveryAddress *Address        `json:"deliveryAddress,omitempty"`
	BuyerName       string          `json:"buyerName,omitempty"`
	SellerName      string          `json:"sellerName,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserSuspended
}

// AdminStats are the platform counters shown on the admin dashboard.
type AdminStats struct {
	BuyerCount  int `json:"buyerCount"`
	SellerCount int `json:"sellerCount"`
	OrderCount  int `json:"orderCount"`
}

type OnboardingRequest struct {
	Role             Role    `json:"role"`
	BusinessName     string  `json:"businessName"`
	GSTNumber        string  `json:"gstNumber,omitempty"`
	BusinessCategory string  `json:"businessCategory,omitempty"`
	Phone            string  `json:"phone"`
	Address          Address `json:"address"`
}

type ProfileUpdate struct {
	Name         string   `json:"name"`
	BusinessName string   `json:"businessName,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Address      *Address `json:"address,omitempty"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Notification struct {
	ID        string          `json:"_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Read      bool            `json:"read"`
	Priority  Priority        `json:"priority,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	ReadAt    *time.Time      `json:"readAt,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

type NotificationStats struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	ByType     map[string]int `json:"byType,omitempty"`
	ByPriority map[string]int `json:"byPriority,omitempty"`
}
