// Package agent runs the autonomous decision loop. Decisions are sampled over
// canned reasoning strings; the portfolio consequences flow through the
// ledger facade, which is the only component allowed to mutate the balance.
package agent

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentfolio/agentfolio/internal/domain"
	"github.com/agentfolio/agentfolio/internal/services/ledger"
)

const (
	actionBuy  = "buy"
	actionSell = "sell"
	actionHold = "hold"
)

// cannedDecision is one sampleable decision outcome.
type cannedDecision struct {
	action    string
	reasoning string
	weight    int
}

var cannedDecisions = []cannedDecision{
	{actionHold, "Momentum is unclear, staying on the sidelines this cycle.", 25},
	{actionHold, "Spread between short and long EMAs is too narrow to act on.", 15},
	{actionHold, "Recent volatility suggests waiting for a cleaner setup.", 10},
	{actionBuy, "Price is holding above support with improving momentum, adding exposure.", 12},
	{actionBuy, "RSI recovered from oversold territory, opening a starter position.", 8},
	{actionBuy, "Pullback to the moving average looks like a dip worth buying.", 5},
	{actionSell, "Taking profit after an extended run above the entry zone.", 12},
	{actionSell, "RSI is overheated, trimming the position into strength.", 8},
	{actionSell, "Momentum is rolling over, reducing exposure before it fades.", 5},
}

// Facade is the ledger surface the agent drives.
type Facade interface {
	Balance(ctx context.Context) (domain.Balance, error)
	SubmitTrade(ctx context.Context, req ledger.SubmitRequest) (domain.Trade, error)
}

// PriceResolver resolves the current market price.
type PriceResolver interface {
	Resolve(ctx context.Context) (decimal.Decimal, error)
}

// ContextBuilder summarizes recent market conditions for the journal.
type ContextBuilder interface {
	MarketContext(ctx context.Context) string
}

// DecisionWriter journals decision events.
type DecisionWriter interface {
	Save(event domain.DecisionEvent) error
}

// Agent is the decision loop for a single pair.
type Agent struct {
	pair         domain.Pair
	facade       Facade
	resolver     PriceResolver
	contexter    ContextBuilder
	journal      DecisionWriter
	tradePercent decimal.Decimal
	feeRate      decimal.Decimal
	interval     time.Duration
	rng          *rand.Rand
	logger       *zap.Logger
}

// New creates an agent. tradePercent sizes each trade as a percentage of the
// available side of the balance; feeRate is the simulated taker fee fraction.
func New(pair domain.Pair, facade Facade, resolver PriceResolver, contexter ContextBuilder, journal DecisionWriter,
	tradePercent, feeRate decimal.Decimal, interval time.Duration, seed int64, logger *zap.Logger) (*Agent, error) {
	if facade == nil {
		return nil, errors.New("ledger facade is required")
	}
	if resolver == nil {
		return nil, errors.New("price resolver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		pair:         pair,
		facade:       facade,
		resolver:     resolver,
		contexter:    contexter,
		journal:      journal,
		tradePercent: tradePercent,
		feeRate:      feeRate,
		interval:     interval,
		rng:          rand.New(rand.NewSource(seed)),
		logger:       logger,
	}, nil
}

// Run executes decision cycles until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("starting decision loop",
		zap.String("pair", a.pair.String()),
		zap.Duration("interval", a.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.DecideOnce(ctx); err != nil {
				a.logger.Error("decision cycle failed", zap.Error(err))
			}
		}
	}
}

// DecideOnce runs a single decision cycle: sample a canned decision, size it
// against the balance, submit it, and journal the outcome.
func (a *Agent) DecideOnce(ctx context.Context) error {
	decision := a.sample()

	event := domain.DecisionEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Pair:      a.pair.String(),
		Action:    decision.action,
		Reasoning: decision.reasoning,
	}
	if a.contexter != nil {
		event.MarketContext = a.contexter.MarketContext(ctx)
	}

	if decision.action == actionHold {
		return a.record(event)
	}

	price, err := a.resolver.Resolve(ctx)
	if err != nil {
		event.Error = err.Error()
		if recErr := a.record(event); recErr != nil {
			a.logger.Warn("failed to journal decision", zap.Error(recErr))
		}
		return errors.Wrap(err, "resolve price for decision")
	}
	event.Price = price.String()

	qty, err := a.sizeTrade(ctx, decision.action, price)
	if err != nil {
		event.Error = err.Error()
		if recErr := a.record(event); recErr != nil {
			a.logger.Warn("failed to journal decision", zap.Error(recErr))
		}
		return err
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		event.Action = actionHold
		event.Reasoning = "Nothing to trade on this side of the balance."
		return a.record(event)
	}
	event.BaseQty = qty.String()

	gross := qty.Mul(price)
	trade, err := a.facade.SubmitTrade(ctx, ledger.SubmitRequest{
		Side:          domain.Side(decision.action),
		BaseQty:       qty,
		Price:         price,
		Fee:           gross.Mul(a.feeRate),
		Rationale:     decision.reasoning,
		MarketContext: event.MarketContext,
	})
	switch {
	case err == nil:
		event.TradeID = trade.ID
	case errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrInsufficientHoldings):
		// rejected trades stay rejected; the agent never shrinks them to fit.
		event.Rejected = true
		event.Error = err.Error()
		a.logger.Info("trade rejected", zap.String("action", decision.action), zap.Error(err))
	default:
		event.Error = err.Error()
		if recErr := a.record(event); recErr != nil {
			a.logger.Warn("failed to journal decision", zap.Error(recErr))
		}
		return errors.Wrap(err, "submit trade")
	}

	return a.record(event)
}

func (a *Agent) sample() cannedDecision {
	total := 0
	for _, d := range cannedDecisions {
		total += d.weight
	}
	pick := a.rng.Intn(total)
	for _, d := range cannedDecisions {
		pick -= d.weight
		if pick < 0 {
			return d
		}
	}
	return cannedDecisions[0]
}

func (a *Agent) sizeTrade(ctx context.Context, action string, price decimal.Decimal) (decimal.Decimal, error) {
	balance, err := a.facade.Balance(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "read balance for sizing")
	}

	fraction := a.tradePercent.Div(hundred)
	switch action {
	case actionBuy:
		budget := balance.QuoteQty.Mul(fraction)
		// leave headroom for the fee so the sized trade passes validation.
		budget = budget.Div(decimal.NewFromInt(1).Add(a.feeRate))
		if price.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, nil
		}
		return budget.Div(price), nil
	case actionSell:
		return balance.BaseQty.Mul(fraction), nil
	default:
		return decimal.Zero, nil
	}
}

func (a *Agent) record(event domain.DecisionEvent) error {
	if a.journal == nil {
		return nil
	}
	if err := a.journal.Save(event); err != nil {
		return errors.Wrap(err, "journal decision event")
	}
	return nil
}

var hundred = decimal.NewFromInt(100)
