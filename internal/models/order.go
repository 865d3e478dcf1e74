package models

// Order is the snapshot of a commerce order as delivered by the host
// platform's webhooks. The platform owns the order; this service only reads
// from it and keeps its own flags (see OrderFlags).
type Order struct {
	ID              int64             `json:"id"`
	Status          string            `json:"status"`
	PaymentMethod   string            `json:"payment_method"`
	Currency        string            `json:"currency"`
	Subtotal        float64           `json:"subtotal"`
	TotalTax        float64           `json:"total_tax"`
	ShippingTotal   float64           `json:"shipping_total"`
	CouponCodes     []string          `json:"coupon_codes,omitempty"`
	Items           []OrderItem       `json:"items"`
	Billing         BillingInfo       `json:"billing"`
	CustomerIP      string            `json:"customer_ip,omitempty"`
	CustomerUA      string            `json:"customer_user_agent,omitempty"`
	ConfirmationURL string            `json:"confirmation_url,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
	FBP             string            `json:"fbp,omitempty"`
	FBC             string            `json:"fbc,omitempty"`
}

// OrderItem is one order line. ProductID is empty when the underlying
// product has been deleted since checkout; such lines are skipped when
// building payloads.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Category  string  `json:"category,omitempty"`
	Variant   string  `json:"variant,omitempty"`
}

type BillingInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
}
