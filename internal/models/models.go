package models

import (
	"database/sql"
	"time"
)

// Category groups products; one level of nesting via ParentID.
type Category struct {
	ID          int64          `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	ParentID    sql.NullInt64  `db:"parent_id" json:"parent_id,omitempty"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	IsActive    bool           `db:"is_active" json:"is_active"`
}

// IsParent reports whether this is a top-level category.
func (c *Category) IsParent() bool {
	return !c.ParentID.Valid
}

// Product represents a catalog item. Prices are in centavos.
type Product struct {
	ID          int64          `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	CategoryID  int64          `db:"category_id" json:"category_id"`
	Price       int64          `db:"price" json:"price"`
	IsSale      bool           `db:"is_sale" json:"is_sale"`
	SalePrice   int64          `db:"sale_price" json:"sale_price"`
	Stock       int            `db:"stock" json:"stock"`
	IsAvailable bool           `db:"is_available" json:"is_available"`
	ImageURL    sql.NullString `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// EffectivePrice returns the sale price when the product is on sale.
func (p *Product) EffectivePrice() int64 {
	if p.IsSale {
		return p.SalePrice
	}
	return p.Price
}

// InStock reports whether the product can be reserved at all.
func (p *Product) InStock() bool {
	return p.Stock > 0 && p.IsAvailable
}

// ProductImage is an additional gallery image for a product.
type ProductImage struct {
	ID        int64          `db:"id" json:"id"`
	ProductID int64          `db:"product_id" json:"product_id"`
	URL       string         `db:"url" json:"url"`
	AltText   sql.NullString `db:"alt_text" json:"alt_text,omitempty"`
	IsPrimary bool           `db:"is_primary" json:"is_primary"`
	Position  int            `db:"position" json:"position"`
}

// Profile holds per-user contact data and the durable cart snapshot.
type Profile struct {
	ID        int64          `db:"id" json:"id"`
	UserID    int64          `db:"user_id" json:"user_id"`
	Phone     sql.NullString `db:"phone" json:"phone,omitempty"`
	Address1  sql.NullString `db:"address1" json:"address1,omitempty"`
	Address2  sql.NullString `db:"address2" json:"address2,omitempty"`
	City      sql.NullString `db:"city" json:"city,omitempty"`
	State     sql.NullString `db:"state" json:"state,omitempty"`
	Zipcode   sql.NullString `db:"zipcode" json:"zipcode,omitempty"`
	Country   sql.NullString `db:"country" json:"country,omitempty"`
	SavedCart sql.NullString `db:"saved_cart" json:"-"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Reservation statuses
const (
	ReservationStatusPending   = "pending"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusExpired   = "expired"
)

// Reservation is a time-boxed hold against product stock created at
// checkout, prior to payment confirmation. CheckoutID groups the
// reservations created from one cart submission.
type Reservation struct {
	ID               int64          `db:"id" json:"id"`
	CheckoutID       string         `db:"checkout_id" json:"checkout_id"`
	UserID           sql.NullInt64  `db:"user_id" json:"user_id,omitempty"`
	ProductID        int64          `db:"product_id" json:"product_id"`
	Quantity         int            `db:"quantity" json:"quantity"`
	CustomerName     string         `db:"customer_name" json:"customer_name"`
	CustomerEmail    string         `db:"customer_email" json:"customer_email"`
	CustomerPhone    sql.NullString `db:"customer_phone" json:"customer_phone,omitempty"`
	ShippingAddress  string         `db:"shipping_address" json:"shipping_address"`
	TotalPrice       int64          `db:"total_price" json:"total_price"`
	Status           string         `db:"status" json:"status"`
	ExpiresAt        sql.NullTime   `db:"expires_at" json:"expires_at,omitempty"`
	CustomerNotified bool           `db:"customer_notified" json:"customer_notified"`
	AdminNotified    bool           `db:"admin_notified" json:"admin_notified"`
	ConvertedToOrder bool           `db:"converted_to_order" json:"converted_to_order"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Order is the terminal audit record of a completed sale. Once created it
// is only mutated to flip Shipped and stamp DateShipped.
type Order struct {
	ID                int64          `db:"id" json:"id"`
	UserID            sql.NullInt64  `db:"user_id" json:"user_id,omitempty"`
	FullName          string         `db:"full_name" json:"full_name"`
	Email             string         `db:"email" json:"email"`
	ShippingAddress   string         `db:"shipping_address" json:"shipping_address"`
	AmountPaid        int64          `db:"amount_paid" json:"amount_paid"`
	ShippingMethodID  sql.NullInt64  `db:"shipping_method_id" json:"shipping_method_id,omitempty"`
	ShippingCost      int64          `db:"shipping_cost" json:"shipping_cost"`
	TotalWithShipping int64          `db:"total_with_shipping" json:"total_with_shipping"`
	ReservationID     sql.NullInt64  `db:"reservation_id" json:"reservation_id,omitempty"`
	PaymentID         sql.NullString `db:"payment_id" json:"payment_id,omitempty"`
	Shipped           bool           `db:"shipped" json:"shipped"`
	DateShipped       sql.NullTime   `db:"date_shipped" json:"date_shipped,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// OrderItem links an Order to a Product with a unit price snapshot taken at
// order-creation time, preserving historical pricing.
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// Shipping carrier names
const (
	ShippingOCA             = "oca"
	ShippingAndreani        = "andreani"
	ShippingCorreoArgentino = "correo_argentino"
)

// ShippingMethod holds carrier pricing. Costs are in centavos.
type ShippingMethod struct {
	ID                    int64          `db:"id" json:"id"`
	Name                  string         `db:"name" json:"name"`
	BaseCost              int64          `db:"base_cost" json:"base_cost"`
	CostPerKg             int64          `db:"cost_per_kg" json:"cost_per_kg"`
	FreeShippingThreshold sql.NullInt64  `db:"free_shipping_threshold" json:"free_shipping_threshold,omitempty"`
	IsActive              bool           `db:"is_active" json:"is_active"`
	EstimatedDays         sql.NullString `db:"estimated_days" json:"estimated_days,omitempty"`
}

// Cost calculates the shipping cost for an order total and weight, applying
// the free-shipping threshold when configured.
func (m *ShippingMethod) Cost(orderTotal int64, weightKg int) int64 {
	if m.FreeShippingThreshold.Valid && orderTotal >= m.FreeShippingThreshold.Int64 {
		return 0
	}
	return m.BaseCost + m.CostPerKg*int64(weightKg)
}

// Visit is a single page-view record written by the analytics middleware.
type Visit struct {
	ID        int64          `db:"id" json:"id"`
	IPAddress string         `db:"ip_address" json:"ip_address"`
	UserAgent sql.NullString `db:"user_agent" json:"user_agent,omitempty"`
	UserID    sql.NullInt64  `db:"user_id" json:"user_id,omitempty"`
	PageURL   string         `db:"page_url" json:"page_url"`
	Referrer  sql.NullString `db:"referrer" json:"referrer,omitempty"`
	IsMobile  bool           `db:"is_mobile" json:"is_mobile"`
	Browser   sql.NullString `db:"browser" json:"browser,omitempty"`
	OS        sql.NullString `db:"os" json:"os,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// VisitSummary is the daily rollup of visits.
type VisitSummary struct {
	Date             time.Time `db:"date" json:"date"`
	TotalVisits      int       `db:"total_visits" json:"total_visits"`
	UniqueVisitors   int       `db:"unique_visitors" json:"unique_visitors"`
	LoggedUserVisits int       `db:"logged_user_visits" json:"logged_user_visits"`
	AnonymousVisits  int       `db:"anonymous_visits" json:"anonymous_visits"`
	MobileVisits     int       `db:"mobile_visits" json:"mobile_visits"`
	DesktopVisits    int       `db:"desktop_visits" json:"desktop_visits"`
}

// Payment statuses as reported by the gateway
const (
	PaymentStatusApproved = "approved"
	PaymentStatusPending  = "pending"
	PaymentStatusRejected = "rejected"
)

// ProcessedNotification deduplicates webhook deliveries per payment ID.
type ProcessedNotification struct {
	PaymentID   string    `db:"payment_id"`
	Status      string    `db:"status"`
	ProcessedAt time.Time `db:"processed_at"`
}
