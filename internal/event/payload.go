package event

// Payload is the canonical purchase event sent to the tracking endpoint.
// Field names follow the wire format the endpoint expects.
type Payload struct {
	Event          string            `json:"event"`
	EventID        string            `json:"event_id"`
	EventTime      int64             `json:"event_time"`
	ActionSource   string            `json:"action_source"`
	EventSourceURL string            `json:"event_source_url,omitempty"`
	Value          float64           `json:"value"`
	Currency       string            `json:"currency"`
	TransactionID  string            `json:"transaction_id"`
	Tax            float64           `json:"tax"`
	Shipping       float64           `json:"shipping"`
	Coupon         string            `json:"coupon,omitempty"`
	Items          []Item            `json:"items"`
	ContentIDs     []string          `json:"content_ids"`
	UserData       map[string]string `json:"user_data"`
	Context        Context           `json:"context"`
}

type Item struct {
	ItemID       string  `json:"item_id"`
	ItemName     string  `json:"item_name"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	ItemCategory string  `json:"item_category,omitempty"`
	ItemVariant  string  `json:"item_variant,omitempty"`
}

// Context carries request-level metadata. The delay fields stay zero until
// the dispatcher annotates the payload right before a delayed send.
type Context struct {
	IP                string            `json:"ip,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
	IsDelayed         bool              `json:"is_delayed"`
	DelayedReason     string            `json:"delayed_reason,omitempty"`
	ManualFire        bool              `json:"manual_fire,omitempty"`
	OriginalTimestamp int64             `json:"original_timestamp,omitempty"`
	UTM               map[string]string `json:"utm,omitempty"`
}
