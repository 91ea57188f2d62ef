package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokenlens/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const commandTimeout = 30 * time.Second

type MarketPricer interface {
	GetPrice(ctx context.Context, symbol string) (*domain.MarketQuote, error)
}

type TokenPricer interface {
	ResolvePrice(ctx context.Context, ref domain.TokenRef, includeMetadataFallback bool) (*domain.TokenPriceResult, error)
	CompareSources(ctx context.Context, ref domain.TokenRef) *domain.SourceComparison
}

type PortfolioReporter interface {
	PricesOnly(ctx context.Context) *domain.PortfolioPrices
}

// Commands holds the bot's command handlers, independent of telebot so
// they can be exercised directly.
type Commands struct {
	Market    MarketPricer
	Tokens    TokenPricer
	Portfolio PortfolioReporter
}

// StartTelegramBot starts long polling in the background. An empty token
// disables the bot.
func StartTelegramBot(logger *zap.Logger, token string, cmds *Commands) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if token == "" {
		logger.Info("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Warn("telegram handler error", zap.Error(err))
		},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return fmt.Errorf("create Telegram bot: %w", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/price", reply(cmds.Price))
	b.Handle("/volume", reply(cmds.Volume))
	b.Handle("/token", reply(cmds.Token))
	b.Handle("/compare", reply(cmds.Compare))
	b.Handle("/portfolio", reply(cmds.Holdings))

	logger.Info("Telegram bot started")
	go b.Start()
	return nil
}

func reply(fn func(ctx context.Context, args []string) string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return c.Send(fn(ctx, c.Args()))
	}
}

// Price handles /price SYMBOL.
func (cmds *Commands) Price(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /price BTC\nTracked: %s", strings.Join(domain.DefaultTrackedSymbols, ", "))
	}
	symbol := strings.ToUpper(args[0])
	quote, err := cmds.Market.GetPrice(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("Error fetching price for %s: %v", symbol, err)
	}
	return fmt.Sprintf(
		"%s\nPrice: $%s\n24h Change: %s\n24h Volume: $%s",
		symbol, formatPrice(&quote.CurrentPrice), formatPct(quote.PriceChangePct24h), formatWhole(quote.Volume24h),
	)
}

// Volume handles /volume SYMBOL.
func (cmds *Commands) Volume(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: /volume SOL\nTracked: %s", strings.Join(domain.DefaultTrackedSymbols, ", "))
	}
	symbol := strings.ToUpper(args[0])
	quote, err := cmds.Market.GetPrice(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("Error fetching volume for %s: %v", symbol, err)
	}
	return fmt.Sprintf(
		"%s 24h Trading Volume\nVolume: $%s\nPrice: $%s\n24h Change: %s",
		symbol, formatWhole(quote.Volume24h), formatPrice(&quote.CurrentPrice), formatPct(quote.PriceChangePct24h),
	)
}

// Token handles /token ADDRESS [NETWORK].
func (cmds *Commands) Token(ctx context.Context, args []string) string {
	ref, usage := parseRef(args, "/token")
	if usage != "" {
		return usage
	}
	res, err := cmds.Tokens.ResolvePrice(ctx, ref, true)
	if err != nil {
		return fmt.Sprintf("Error fetching %s: %v", ref.Address, err)
	}

	var b strings.Builder
	name := res.Symbol
	if res.Name != "" && res.Name != res.Symbol {
		name = fmt.Sprintf("%s (%s)", res.Name, res.Symbol)
	}
	fmt.Fprintf(&b, "%s on %s\n", name, res.Network)
	if res.HasPrice() {
		fmt.Fprintf(&b, "Price: $%s\n", formatPrice(res.CurrentPrice))
		fmt.Fprintf(&b, "24h Change: %s\n", formatPct(res.PriceChangePct24h))
		fmt.Fprintf(&b, "24h Volume: $%s\n", formatWhole(res.Volume24h))
		fmt.Fprintf(&b, "Liquidity: $%s\n", formatWhole(res.LiquidityUSD))
	}
	if res.Note != "" {
		fmt.Fprintf(&b, "%s\n", res.Note)
	}
	fmt.Fprintf(&b, "Source: %s", res.Source)
	return b.String()
}

// Compare handles /compare ADDRESS [NETWORK].
func (cmds *Commands) Compare(ctx context.Context, args []string) string {
	ref, usage := parseRef(args, "/compare")
	if usage != "" {
		return usage
	}
	cmp := cmds.Tokens.CompareSources(ctx, ref)

	var b strings.Builder
	fmt.Fprintf(&b, "Sources for %s\n", ref.Address)
	for _, name := range []domain.Source{domain.SourceGeckoTerminal, domain.SourceDefiLlama, domain.SourceAlchemy} {
		out := cmp.Sources[string(name)]
		switch {
		case !out.Success:
			fmt.Fprintf(&b, "%s: failed\n", name)
		case out.Price != nil:
			fmt.Fprintf(&b, "%s: $%s\n", name, formatPrice(out.Price))
		default:
			fmt.Fprintf(&b, "%s: %s\n", name, out.Note)
		}
	}
	if a := cmp.PriceAnalysis; a != nil {
		verdict := "consistent"
		if !a.Consistent {
			verdict = "inconsistent"
		}
		fmt.Fprintf(&b, "Max deviation: %s (%s)", formatPct(&a.MaxDeviationPercent), verdict)
	} else {
		b.WriteString("Not enough prices to compare")
	}
	return b.String()
}

// Holdings handles /portfolio.
func (cmds *Commands) Holdings(ctx context.Context, _ []string) string {
	prices := cmds.Portfolio.PricesOnly(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: $%s (%s)\n", prices.MainToken.Symbol, formatPrice(prices.MainToken.Price), formatPct(prices.MainToken.PriceChange24h))
	for _, p := range prices.Pairs {
		fmt.Fprintf(&b, "%s: $%s (%s)\n", p.Pair, formatPrice(p.Price), formatPct(p.PriceChange24h))
	}
	if len(prices.Pairs) == 0 {
		b.WriteString("No pairs priced\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseRef(args []string, cmd string) (domain.TokenRef, string) {
	if len(args) == 0 {
		return domain.TokenRef{}, fmt.Sprintf("Usage: %s 0xCONTRACT [network]\nDefault network: %s", cmd, domain.DefaultNetwork)
	}
	network := ""
	if len(args) > 1 {
		network = args[1]
	}
	ref, err := domain.NewTokenRef(args[0], network)
	if err != nil {
		return domain.TokenRef{}, err.Error()
	}
	return ref, ""
}

// formatPrice shows three significant digits for sub-dollar prices and
// cents otherwise.
func formatPrice(p *float64) string {
	if p == nil {
		return "n/a"
	}
	d := decimal.NewFromFloat(*p)
	if d.IsZero() || d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.StringFixed(2)
	}
	zeros := int32(0)
	for v := d.Abs(); v.LessThan(decimal.New(1, -1)) && zeros < 12; v = v.Shift(1) {
		zeros++
	}
	return d.StringFixed(zeros + 3)
}

func formatPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*p).StringFixed(2) + "%"
}

func formatWhole(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*p).StringFixed(0)
}
