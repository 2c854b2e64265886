package router

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/skalenetwork/portal-sub000/portal/models"
)

var plannerLog zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	plannerLog = zerolog.New(out).With().Timestamp().Str("component", "planner").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	plannerLog = l.With().Str("component", "planner").Logger()
}

// Planner turns a (token, source, destination) selection into the ordered list of steps
// the host has to execute.
type Planner struct {
	mainnet string
}

// NewPlanner creates a planner. mainnet names the public chain.
func NewPlanner(mainnet string) *Planner {
	return &Planner{mainnet: mainnet}
}

// ActionTypeFor derives the transfer tag of a hop from the token standard and from which side
// of the hop is the public mainnet.
func ActionTypeFor(tokenType models.TokenType, from, to, mainnet string) models.ActionType {
	dir := models.DirectionS2S
	switch {
	case from == mainnet:
		dir = models.DirectionM2S
	case to == mainnet:
		dir = models.DirectionS2M
	}
	return models.TransferActionType(tokenType, dir)
}

// Plan computes the steps that move token from one chain to another. A zero token or an empty
// chain yields an empty plan. The result is a pure function of its inputs.
func (p *Planner) Plan(token models.Token, from, to string) []models.StepMetadata {
	steps := []models.StepMetadata{}
	if token.IsZero() || from == "" || to == "" || from == to {
		return steps
	}
	source, ok := token.Connection(from)
	if !ok {
		plannerLog.Debug().Str("token", token.Keyname).Str("chain", from).Msg("Token not on source chain")
		return steps
	}

	hub := source.HubFor(to)
	toChain := to
	if hub != "" {
		toChain = hub
	}

	steps, wrapped := p.hop(steps, token, from, toChain, false)
	if hub != "" {
		steps, _ = p.hop(steps, token, hub, to, wrapped)
	}

	if to == p.mainnet && token.Type == models.TokenTypeEth {
		steps = append(steps, models.StepMetadata{
			Type:     models.ActionUnlock,
			From:     from,
			To:       to,
			OnSource: false,
			Headline: "Unlock ETH",
			Text:     fmt.Sprintf("Claim the ETH released on %s", to),
		})
	}

	plannerLog.Debug().
		Str("token", token.Keyname).
		Str("from", from).
		Str("to", to).
		Str("hub", hub).
		Int("steps", len(steps)).
		Msg("Planned transfer")
	return steps
}

// hop appends the steps of a single bridge crossing. arrivedWrapped is true when the previous
// hop left the token wrapped on a, in which case wrapping again is skipped. The returned flag
// reports whether the token is still wrapped on b.
func (p *Planner) hop(steps []models.StepMetadata, token models.Token, a, b string, arrivedWrapped bool) ([]models.StepMetadata, bool) {
	onA, _ := token.Connection(a)
	onB, okB := token.Connection(b)

	if onA.HasWrapper() && !arrivedWrapped {
		steps = append(steps, models.StepMetadata{
			Type:     models.ActionWrap,
			From:     a,
			To:       b,
			OnSource: true,
			Headline: fmt.Sprintf("Wrap %s", token.Symbol),
			Text:     fmt.Sprintf("Wrap %s on %s before it can be moved", token.Symbol, a),
		})
	}

	kind := ActionTypeFor(token.Type, a, b, p.mainnet)
	steps = append(steps, models.StepMetadata{
		Type:     kind,
		From:     a,
		To:       b,
		OnSource: true,
		Headline: fmt.Sprintf("Transfer %s", token.Symbol),
		Text:     fmt.Sprintf("Move %s from %s to %s", token.Symbol, a, b),
	})

	// clone-to-clone hops keep the wrapped representation
	cloneToClone := onA.Clone && okB && onB.Clone
	if okB && onB.HasWrapper() {
		if cloneToClone {
			return steps, true
		}
		steps = append(steps, models.StepMetadata{
			Type:     models.ActionUnwrap,
			From:     a,
			To:       b,
			OnSource: false,
			Headline: fmt.Sprintf("Unwrap %s", token.Symbol),
			Text:     fmt.Sprintf("Unwrap %s on %s", token.Symbol, b),
		})
	}
	return steps, false
}
