package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelfly/pixeltrack/internal/models"
)

func testOrder() *models.Order {
	return &models.Order{
		ID:            1001,
		Status:        "pending",
		PaymentMethod: "cod",
		Currency:      "USD",
		Subtotal:      49.90,
		TotalTax:      4.99,
		ShippingTotal: 5.00,
		CouponCodes:   []string{"SUMMER10", "FREESHIP"},
		Items: []models.OrderItem{
			{ProductID: "101", Name: "Blue T-Shirt", Price: 19.95, Quantity: 2, Category: "Apparel", Variant: "Blue / L"},
			{ProductID: "202", Name: "Sticker Pack", Price: 10.00, Quantity: 1},
		},
		Billing: models.BillingInfo{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "  Jane.Doe@Example.COM ",
			Phone:     "+1 (555) 123-4567",
			City:      "Springfield",
			State:     "IL",
			Postcode:  "62704",
			Country:   "us",
		},
		CustomerIP:      "203.0.113.7",
		CustomerUA:      "Mozilla/5.0",
		ConfirmationURL: "https://shop.example.com/checkout/order-received/1001",
		Meta: map[string]string{
			"_utm_source":   "facebook",
			"_utm_campaign": "spring",
			"_fbclid":       "abc123",
		},
		FBP: "fb.1.1700000000.12345",
	}
}

func TestBuildPurchasePayload(t *testing.T) {
	now := time.Unix(1710000000, 0)
	p := Build(testOrder(), now)

	assert.Equal(t, "purchase", p.Event)
	assert.Equal(t, "purchase_1001_1710000000", p.EventID)
	assert.Equal(t, int64(1710000000), p.EventTime)
	assert.Equal(t, "website", p.ActionSource)
	assert.Equal(t, "https://shop.example.com/checkout/order-received/1001", p.EventSourceURL)
	assert.Equal(t, 49.90, p.Value)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "1001", p.TransactionID)
	assert.Equal(t, 4.99, p.Tax)
	assert.Equal(t, 5.00, p.Shipping)
	assert.Equal(t, "SUMMER10, FREESHIP", p.Coupon)

	require.Len(t, p.Items, 2)
	assert.Equal(t, "101", p.Items[0].ItemID)
	assert.Equal(t, "Blue T-Shirt", p.Items[0].ItemName)
	assert.Equal(t, 19.95, p.Items[0].Price)
	assert.Equal(t, 2, p.Items[0].Quantity)
	assert.Equal(t, "Apparel", p.Items[0].ItemCategory)
	assert.Equal(t, "Blue / L", p.Items[0].ItemVariant)

	assert.Equal(t, []string{"101", "202"}, p.ContentIDs)
}

func TestBuildSkipsMissingProducts(t *testing.T) {
	order := testOrder()
	order.Items = append(order.Items, models.OrderItem{Name: "Ghost Product", Price: 1.00, Quantity: 1})

	p := Build(order, time.Now())

	require.Len(t, p.Items, 2)
	assert.Equal(t, []string{"101", "202"}, p.ContentIDs)
}

func TestBuildUserDataNormalization(t *testing.T) {
	p := Build(testOrder(), time.Now())

	ud := p.UserData
	assert.Equal(t, "jane.doe@example.com", ud["em"])
	assert.Equal(t, "15551234567", ud["ph"])
	assert.Equal(t, "15551234567", ud["external_id"])
	assert.Equal(t, "springfield", ud["ct"])
	assert.Equal(t, "US", ud["country"])
	assert.Equal(t, "fb.1.1700000000.12345", ud["fbp"])

	// empty fields are omitted, not sent as ""
	_, hasFBC := ud["fbc"]
	assert.False(t, hasFBC)
}

func TestBuildOmitsEmptyUserData(t *testing.T) {
	order := testOrder()
	order.Billing = models.BillingInfo{}
	order.FBP = ""

	p := Build(order, time.Now())
	assert.Empty(t, p.UserData)
}

func TestBuildUTMContext(t *testing.T) {
	p := Build(testOrder(), time.Now())

	assert.Equal(t, "203.0.113.7", p.Context.IP)
	assert.Equal(t, "Mozilla/5.0", p.Context.UserAgent)
	assert.False(t, p.Context.IsDelayed)
	assert.Equal(t, map[string]string{
		"utm_source":   "facebook",
		"utm_campaign": "spring",
		"fbclid":       "abc123",
	}, p.Context.UTM)
}

func TestBuildNoUTM(t *testing.T) {
	order := testOrder()
	order.Meta = nil

	p := Build(order, time.Now())
	assert.Nil(t, p.Context.UTM)
}
