package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event types that drive entitlement changes. Everything else is
// acknowledged and ignored.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// BillingEvent is one verified, decoded provider notification. The event id
// is globally unique and serves as the idempotency key.
type BillingEvent struct {
	ID         string
	Type       string
	OccurredAt time.Time
	RawObject  json.RawMessage
}

// SubscriptionItem is one line item of a subscription; its quantity is the
// unit that maps to the entitlement (concurrent bot count).
type SubscriptionItem struct {
	ID            string
	PriceID       string
	PriceNickname string
	Quantity      int
}

// Subscription is the provider's subscription snapshot at the time of the
// event. It is never mutated locally, only replaced wholesale by the next
// event.
type Subscription struct {
	ID                string
	CustomerID        string
	CustomerEmail     string
	Status            string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	Items             []SubscriptionItem
	Metadata          map[string]string
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type subscriptionJSON struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	CustomerEmail     string            `json:"customer_email"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			ID    string `json:"id"`
			Price struct {
				ID       string `json:"id"`
				Nickname string `json:"nickname"`
			} `json:"price"`
			Quantity int `json:"quantity"`
		} `json:"data"`
	} `json:"items"`
}

// ParseEvent decodes a verified webhook body into a BillingEvent.
func ParseEvent(payload []byte) (*BillingEvent, error) {
	var raw eventEnvelope
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(raw.ID) == "" || strings.TrimSpace(raw.Type) == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedPayload)
	}

	event := &BillingEvent{
		ID:        strings.TrimSpace(raw.ID),
		Type:      strings.TrimSpace(raw.Type),
		RawObject: raw.Data.Object,
	}
	if raw.Created > 0 {
		event.OccurredAt = time.Unix(raw.Created, 0)
	}
	return event, nil
}

// ParseSubscription decodes the event's embedded object as a subscription
// snapshot.
func (e *BillingEvent) ParseSubscription() (*Subscription, error) {
	if len(e.RawObject) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", ErrMalformedPayload, e.ID)
	}
	var raw subscriptionJSON
	if err := json.Unmarshal(e.RawObject, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, fmt.Errorf("%w: event %s missing subscription id", ErrMalformedPayload, e.ID)
	}

	sub := &Subscription{
		ID:                strings.TrimSpace(raw.ID),
		CustomerID:        strings.TrimSpace(raw.Customer),
		CustomerEmail:     strings.TrimSpace(raw.CustomerEmail),
		Status:            strings.ToLower(strings.TrimSpace(raw.Status)),
		CancelAtPeriodEnd: raw.CancelAtPeriodEnd,
		Metadata:          raw.Metadata,
	}
	if raw.CurrentPeriodEnd > 0 {
		t := time.Unix(raw.CurrentPeriodEnd, 0)
		sub.CurrentPeriodEnd = &t
	}
	for _, item := range raw.Items.Data {
		sub.Items = append(sub.Items, SubscriptionItem{
			ID:            item.ID,
			PriceID:       item.Price.ID,
			PriceNickname: item.Price.Nickname,
			Quantity:      item.Quantity,
		})
	}
	if sub.CustomerEmail == "" {
		sub.CustomerEmail = strings.TrimSpace(sub.Metadata["email"])
	}
	return sub, nil
}

// BotCount derives the entitlement unit count from a subscription snapshot.
// Explicit metadata wins, then the first item's quantity, then nickname
// heuristics for grandfathered plans that predate per-unit quantities.
func (s *Subscription) BotCount() int {
	if s.isAPIKeyTrial() {
		return 1
	}
	if raw, ok := s.Metadata["botCount"]; ok {
		if n, err := parsePositiveInt(raw); err == nil {
			return n
		}
	}

	quantity := 0
	nickname := ""
	if len(s.Items) > 0 {
		quantity = s.Items[0].Quantity
		nickname = strings.ToLower(s.Items[0].PriceNickname)
	}
	if quantity > 0 {
		return quantity
	}

	switch {
	case strings.Contains(nickname, "startup"):
		return maxInt(quantity, 5)
	case strings.Contains(nickname, "mvp"):
		return 1
	default:
		return maxInt(quantity, 1)
	}
}

func (s *Subscription) isAPIKeyTrial() bool {
	return s.Metadata["tier"] == "api_key_trial" || s.Metadata["trialType"] == "1_hour"
}

func parsePositiveInt(raw string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("non-positive value %d", n)
	}
	return n, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
