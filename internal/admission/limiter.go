package admission

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tier is the service level an identity is admitted under.
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierKeyed     Tier = "keyed"
)

// Limits describes one tier's token bucket: sustained requests per minute
// and burst capacity.
type Limits struct {
	PerMinute int
	Burst     int
}

// Decision is the outcome of an admission check. RetryAfter is only
// meaningful when Allowed is false.
type Decision struct {
	Allowed    bool
	Tier       Tier
	RetryAfter time.Duration
}

// Identity is who is asking: the client IP, plus the API key when one was
// presented. A key selects the keyed tier and its higher ceiling.
type Identity struct {
	IP     string
	APIKey string
}

// Controller enforces per-identity token-bucket rate limits across two
// tiers. It is a pure admission decision with no knowledge of anything
// downstream, and it never blocks: a denied request gets a retry-after hint
// instead of being queued.
type Controller struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	anonymous Limits
	keyed     Limits
	lastPrune time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// staleBucketAge is how long an idle identity keeps its bucket before it is
// dropped on the next prune pass. A dropped bucket refills to full, which is
// the correct state for an identity idle that long anyway.
const staleBucketAge = 10 * time.Minute

// NewController creates a two-tier admission controller.
func NewController(anonymous, keyed Limits) *Controller {
	return &Controller{
		buckets:   make(map[string]*bucket),
		anonymous: anonymous,
		keyed:     keyed,
		lastPrune: time.Now(),
	}
}

// Admit checks whether the identity may proceed, consuming one token when it
// can. The check is synchronous and cheap; it runs before any downstream
// work begins.
func (c *Controller) Admit(id Identity) Decision {
	tier, key, limits := c.classify(id)

	c.mu.Lock()
	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(limits.PerMinute)/60.0), limits.Burst)}
		c.buckets[key] = b
	}
	b.lastSeen = time.Now()
	c.pruneLocked()
	c.mu.Unlock()

	res := b.limiter.Reserve()
	if !res.OK() {
		return Decision{Allowed: false, Tier: tier, RetryAfter: time.Minute}
	}
	delay := res.Delay()
	if delay > 0 {
		// Not admissible right now; hand the token back and tell the
		// caller when to come again.
		res.Cancel()
		return Decision{Allowed: false, Tier: tier, RetryAfter: delay}
	}
	return Decision{Allowed: true, Tier: tier}
}

func (c *Controller) classify(id Identity) (Tier, string, Limits) {
	if id.APIKey != "" {
		return TierKeyed, "key:" + id.APIKey, c.keyed
	}
	ip := id.IP
	if ip == "" {
		ip = "unknown"
	}
	return TierAnonymous, "ip:" + ip, c.anonymous
}

// pruneLocked drops buckets for identities idle past staleBucketAge. Called
// with c.mu held; throttled so the map is swept at most once a minute.
func (c *Controller) pruneLocked() {
	now := time.Now()
	if now.Sub(c.lastPrune) < time.Minute {
		return
	}
	c.lastPrune = now
	for key, b := range c.buckets {
		if now.Sub(b.lastSeen) > staleBucketAge {
			delete(c.buckets, key)
		}
	}
}

// Size reports the number of tracked identities.
func (c *Controller) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}
