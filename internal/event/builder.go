// Package event builds canonical purchase payloads from order snapshots.
// Building is pure: no clock reads, no storage, no network.
package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/pixelfly/pixeltrack/internal/models"
)

// utmFields are the attribution keys captured at checkout and carried on
// the order's metadata, prefixed with underscore by the capture layer.
var utmFields = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
	"fbclid", "gclid", "ttclid",
}

// Build constructs the purchase payload for an order. Lines whose product
// no longer exists are skipped rather than aborting construction. Absent
// identity fields are omitted from user_data entirely.
func Build(order *models.Order, now time.Time) *Payload {
	items := make([]Item, 0, len(order.Items))
	contentIDs := make([]string, 0, len(order.Items))

	for _, line := range order.Items {
		if line.ProductID == "" {
			continue
		}
		items = append(items, Item{
			ItemID:       line.ProductID,
			ItemName:     line.Name,
			Price:        line.Price,
			Quantity:     line.Quantity,
			ItemCategory: line.Category,
			ItemVariant:  line.Variant,
		})
		contentIDs = append(contentIDs, line.ProductID)
	}

	return &Payload{
		Event:          "purchase",
		EventID:        models.EventID(order.ID, now),
		EventTime:      now.Unix(),
		ActionSource:   "website",
		EventSourceURL: order.ConfirmationURL,
		Value:          order.Subtotal,
		Currency:       order.Currency,
		TransactionID:  strconv.FormatInt(order.ID, 10),
		Tax:            order.TotalTax,
		Shipping:       order.ShippingTotal,
		Coupon:         strings.Join(order.CouponCodes, ", "),
		Items:          items,
		ContentIDs:     contentIDs,
		UserData:       buildUserData(order),
		Context: Context{
			IP:        order.CustomerIP,
			UserAgent: order.CustomerUA,
			UTM:       buildUTM(order.Meta),
		},
	}
}

func buildUserData(order *models.Order) map[string]string {
	b := order.Billing
	phone := digitsOnly(b.Phone)

	ud := map[string]string{
		"fn":          b.FirstName,
		"ln":          b.LastName,
		"em":          NormalizeEmail(b.Email),
		"ph":          phone,
		"ct":          strings.ToLower(b.City),
		"st":          b.State,
		"zp":          b.Postcode,
		"country":     strings.ToUpper(b.Country),
		"external_id": phone,
		"fbp":         order.FBP,
		"fbc":         order.FBC,
	}

	for k, v := range ud {
		if v == "" {
			delete(ud, k)
		}
	}
	return ud
}

func buildUTM(meta map[string]string) map[string]string {
	utm := map[string]string{}
	for _, field := range utmFields {
		if v := meta["_"+field]; v != "" {
			utm[field] = v
		} else if v := meta[field]; v != "" {
			utm[field] = v
		}
	}
	if len(utm) == 0 {
		return nil
	}
	return utm
}

// NormalizeEmail lowercases and trims an email for enhanced matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
