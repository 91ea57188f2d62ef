package tui

import (
	"context"
	"strings"
	"testing"

	"tokenlens/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

type stubPortfolio struct{}

func (stubPortfolio) PricesOnly(ctx context.Context) *domain.PortfolioPrices {
	return &domain.PortfolioPrices{
		MainToken: domain.PriceLine{Symbol: "DDD", Price: domain.Float(0.0123), PriceChange24h: domain.Float(-1.5)},
		Pairs: []domain.PriceLine{
			{Symbol: "USDC", Pair: "DDD/USDC", Price: domain.Float(1.001), Volume24h: domain.Float(2500), Source: domain.SourceGeckoTerminal},
		},
	}
}

type stubMarket struct{}

func (stubMarket) GetPrices(ctx context.Context, symbols []string) []*domain.MarketQuote {
	return []*domain.MarketQuote{{Symbol: "BTC", CurrentPrice: 97000, MarketCap: domain.Float(1.9e12)}}
}

func newTestModel() *Model {
	return NewModel(Services{Portfolio: stubPortfolio{}, Market: stubMarket{}, Symbols: []string{"BTC"}, Username: "alice"})
}

func TestFetchPortfolioPopulatesTable(t *testing.T) {
	m := newTestModel()

	msg := m.fetch()()
	if _, ok := msg.(portfolioMsg); !ok {
		t.Fatalf("expected portfolioMsg, got %T", msg)
	}
	m.Update(msg)

	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected main token plus one pair, got %d rows", len(rows))
	}
	if rows[0][0] != "DDD" || rows[0][1] != "$0.012300" || rows[0][2] != "-1.50%" {
		t.Fatalf("unexpected main row: %v", rows[0])
	}
	if rows[1][0] != "DDD/USDC" || rows[1][3] != "$2500" || rows[1][4] != "geckoterminal" {
		t.Fatalf("unexpected pair row: %v", rows[1])
	}
	if m.loading {
		t.Fatal("expected loading to clear")
	}
	if !strings.Contains(m.View(), "alice") {
		t.Fatal("expected username in view")
	}
}

func TestTabSwitchesToMarket(t *testing.T) {
	m := newTestModel()
	m.Update(m.fetch()())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.view != viewMarket {
		t.Fatal("expected market view")
	}
	if cmd == nil {
		t.Fatal("expected a fetch for the empty market view")
	}

	m.Update(m.fetch()())
	rows := m.table.Rows()
	if len(rows) != 1 || rows[0][0] != "BTC" || rows[0][1] != "$97000.00" {
		t.Fatalf("unexpected market rows: %v", rows)
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestViewWhileLoading(t *testing.T) {
	m := newTestModel()
	if !strings.Contains(m.View(), "loading prices") {
		t.Fatalf("expected loading message, got %q", m.View())
	}
}
