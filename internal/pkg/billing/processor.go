// Package billing turns provider webhook deliveries into entitlement
// updates against the admin API. A delivery moves through signature
// verification, parsing and classification before anything is applied;
// failures are split into permanent rejections (bad signature, malformed
// payload) and retryable ones (admin API down), so the HTTP boundary can
// tell the provider whether to redeliver.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/meetloom/billing-sync/internal/pkg/adminapi"
	"github.com/meetloom/billing-sync/internal/pkg/pricing"
	"github.com/meetloom/billing-sync/internal/pkg/tokenstore"
)

// Status is the terminal state of one webhook delivery.
type Status string

const (
	// StatusApplied means the entitlement update reached the admin API.
	StatusApplied Status = "applied"
	// StatusSkipped means the delivery was acknowledged without effect
	// (irrelevant event type or duplicate event id).
	StatusSkipped Status = "skipped"
	// StatusFailed means the delivery was rejected or could not be applied.
	StatusFailed Status = "failed"
)

// Outcome reports how a delivery ended, for the HTTP boundary and logs.
type Outcome struct {
	Status    Status
	EventID   string
	EventType string
	Duplicate bool
	Err       error
}

// Retryable reports whether the provider should redeliver this event.
// Signature and parse failures are permanent; everything else that failed
// is worth another attempt.
func (o Outcome) Retryable() bool {
	if o.Status != StatusFailed {
		return false
	}
	return !errors.Is(o.Err, ErrBadSignature) && !errors.Is(o.Err, ErrMalformedPayload)
}

// AdminClient is the slice of the admin API the processor needs.
type AdminClient interface {
	FindOrCreateUser(ctx context.Context, email, name string) (*adminapi.User, error)
	UpdateUserEntitlement(ctx context.Context, userID int64, update adminapi.EntitlementUpdate) error
}

// dedupTTL must cover the provider's redelivery window.
const dedupTTL = 72 * time.Hour

// Processor is the webhook event processor. It is stateless apart from the
// shared dedup store and the admin client's breaker, so deliveries may be
// processed concurrently.
type Processor struct {
	secret    string
	tolerance time.Duration
	schedule  pricing.Schedule
	store     *tokenstore.Store
	admin     AdminClient

	now func() time.Time
}

// NewProcessor wires a processor. The schedule must satisfy the tier
// invariant; the store doubles as the short-TTL dedup cache.
func NewProcessor(secret string, schedule pricing.Schedule, store *tokenstore.Store, admin AdminClient) *Processor {
	if err := schedule.Validate(); err != nil {
		panic("billing: " + err.Error())
	}
	return &Processor{
		secret:    secret,
		tolerance: DefaultSignatureTolerance,
		schedule:  schedule,
		store:     store,
		admin:     admin,
		now:       time.Now,
	}
}

// Process runs one delivery through the full pipeline:
// received → signature verified → parsed → classified → applied/skipped/failed.
func (p *Processor) Process(ctx context.Context, payload []byte, signatureHeader string) Outcome {
	if err := VerifySignature(payload, signatureHeader, p.secret, p.tolerance, p.now()); err != nil {
		log.Printf("[webhook] rejected delivery: %v", err)
		return Outcome{Status: StatusFailed, Err: err}
	}

	event, err := ParseEvent(payload)
	if err != nil {
		log.Printf("[webhook] rejected delivery: %v", err)
		return Outcome{Status: StatusFailed, Err: err}
	}

	out := Outcome{EventID: event.ID, EventType: event.Type}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
	default:
		out.Status = StatusSkipped
		return out
	}

	// Only an exact repeat of an already-processed event id is a duplicate.
	// A changed subscription id for a known user is a plan change and flows
	// through normally.
	dedupKey := "stripe:event:" + event.ID
	if !p.store.PutIfAbsent(ctx, dedupKey, []byte(event.Type), dedupTTL) {
		log.Printf("[webhook] duplicate event %s, skipping", event.ID)
		out.Status = StatusSkipped
		out.Duplicate = true
		return out
	}

	sub, err := event.ParseSubscription()
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	if err := p.apply(ctx, event, sub); err != nil {
		// Release the dedup mark so the provider's redelivery is not
		// swallowed as a duplicate.
		p.store.Delete(ctx, dedupKey)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	out.Status = StatusApplied
	return out
}

func (p *Processor) apply(ctx context.Context, event *BillingEvent, sub *Subscription) error {
	email := sub.CustomerEmail
	if email == "" {
		return fmt.Errorf("%w: subscription %s has no customer email", ErrMalformedPayload, sub.ID)
	}

	bots := 0
	tier := "none"
	status := sub.Status

	if event.Type == EventSubscriptionDeleted {
		status = "canceled"
	} else {
		bots = sub.BotCount()
		if info, ok := pricing.TierInfo(bots, p.schedule); ok {
			tier = info.Name
		}
		price := pricing.Price(bots, p.schedule)
		log.Printf("[webhook] event %s: subscription %s quantity=%d tier=%s price=%s",
			event.ID, sub.ID, bots, tier, pricing.FormatPrice(price, "usd"))
	}

	user, err := p.admin.FindOrCreateUser(ctx, email, email)
	if err != nil {
		return err
	}

	update := adminapi.EntitlementUpdate{
		MaxConcurrentBots: bots,
		Data: adminapi.EntitlementData{
			SubscriptionID:      sub.ID,
			Tier:                tier,
			Status:              status,
			SubscriptionEndDate: sub.CurrentPeriodEnd,
			UpdatedBy:           "webhook",
		},
	}
	if err := p.admin.UpdateUserEntitlement(ctx, user.ID, update); err != nil {
		return err
	}

	log.Printf("[webhook] event %s applied: user=%d max_concurrent_bots=%d status=%s",
		event.ID, user.ID, bots, status)
	return nil
}
