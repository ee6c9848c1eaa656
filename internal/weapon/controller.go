package weapon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/luciancaetano/arenanet/internal/weapon"

// Controller holds the policy of the weapon currently in hand.
type Controller struct {
	policy    *Policy
	log       zerolog.Logger
	decisions metric.Int64Counter
}

// NewController starts with kind in hand.
func NewController(kind Kind, log zerolog.Logger) *Controller {
	decisions, err := otel.Meter(instrumentationName).Int64Counter(
		"weapon.fire.decisions",
		metric.WithDescription("Fire attempts by weapon and result"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("creating fire decision counter")
	}

	c := &Controller{
		log:       log.With().Str("component", "weapon").Logger(),
		decisions: decisions,
	}
	c.policy = c.build(kind)
	return c
}

func (c *Controller) build(kind Kind) *Policy {
	spec, ok := Lookup(kind)
	if !ok {
		c.log.Warn().Str("weapon", string(kind)).Msg("Unknown weapon, using pistol limits")
		kind = Pistol
		spec, _ = Lookup(Pistol)
	}
	return NewPolicy(kind, spec)
}

// Kind returns the weapon in hand.
func (c *Controller) Kind() Kind {
	return c.policy.Kind()
}

// Switch puts kind in hand. The previous weapon's shot history is dropped.
func (c *Controller) Switch(kind Kind) {
	c.log.Debug().Str("from", string(c.policy.Kind())).Str("to", string(kind)).Msg("Weapon switched")
	c.policy = c.build(kind)
}

// TryFire gates one fire attempt with the current weapon.
func (c *Controller) TryFire(now time.Time, t Trigger) Result {
	r := c.policy.TryFire(now, t)
	if c.decisions != nil && r != RejectedIdle {
		c.decisions.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("weapon", string(c.policy.Kind())),
			attribute.String("result", r.String()),
		))
	}
	return r
}
