package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokenlens/internal/domain"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

const (
	refreshInterval = time.Minute
	fetchTimeout    = 45 * time.Second
)

type PortfolioReporter interface {
	PricesOnly(ctx context.Context) *domain.PortfolioPrices
}

type MarketQuoter interface {
	GetPrices(ctx context.Context, symbols []string) []*domain.MarketQuote
}

// Services are the data sources behind the dashboard.
type Services struct {
	Portfolio PortfolioReporter
	Market    MarketQuoter
	Symbols   []string
	Username  string
}

type view int

const (
	viewPortfolio view = iota
	viewMarket
)

type portfolioMsg struct{ prices *domain.PortfolioPrices }
type marketMsg struct{ quotes []*domain.MarketQuote }
type tickMsg time.Time

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	tabStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTab   = tabStyle.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

// Model is the portfolio dashboard.
type Model struct {
	svc     Services
	view    view
	table   table.Model
	spinner spinner.Model
	loading bool
	width   int
	height  int

	portfolio *domain.PortfolioPrices
	market    []*domain.MarketQuote
	updated   time.Time
}

func NewModel(svc Services) *Model {
	t := table.New(table.WithFocused(true), table.WithHeight(12))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	t.SetStyles(styles)

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := &Model{svc: svc, table: t, spinner: s, loading: true}
	m.applyColumns()
	return m
}

// SetSize fits the table to the terminal.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	if h := height - 8; h > 3 {
		m.table.SetHeight(h)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.view == viewPortfolio {
				m.view = viewMarket
			} else {
				m.view = viewPortfolio
			}
			m.applyColumns()
			m.applyRows()
			if len(m.table.Rows()) == 0 {
				m.loading = true
				return m, tea.Batch(m.spinner.Tick, m.fetch())
			}
			return m, nil
		case "r":
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		}
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case portfolioMsg:
		m.portfolio = msg.prices
		m.loading = false
		m.updated = time.Now()
		m.applyRows()
		return m, nil
	case marketMsg:
		m.market = msg.quotes
		m.loading = false
		m.updated = time.Now()
		m.applyRows()
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tokenlens"))
	if m.svc.Username != "" {
		b.WriteString(helpStyle.Render("  " + m.svc.Username))
	}
	b.WriteString("\n\n")

	portfolioTab, marketTab := tabStyle, tabStyle
	if m.view == viewPortfolio {
		portfolioTab = activeTab
	} else {
		marketTab = activeTab
	}
	b.WriteString(portfolioTab.Render("Portfolio") + " " + marketTab.Render("Market") + "\n\n")

	if m.loading && m.updated.IsZero() {
		b.WriteString(m.spinner.View() + " loading prices...\n")
	} else {
		b.WriteString(borderStyle.Render(m.table.View()) + "\n")
	}

	status := "tab switch view • r refresh • q quit"
	if !m.updated.IsZero() {
		status = fmt.Sprintf("updated %s • %s", m.updated.Format("15:04:05"), status)
	}
	if m.loading && !m.updated.IsZero() {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(helpStyle.Render(status))
	return b.String()
}

func (m *Model) fetch() tea.Cmd {
	switch m.view {
	case viewMarket:
		if m.svc.Market == nil {
			return nil
		}
		market, symbols := m.svc.Market, m.svc.Symbols
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()
			return marketMsg{quotes: market.GetPrices(ctx, symbols)}
		}
	default:
		if m.svc.Portfolio == nil {
			return nil
		}
		portfolio := m.svc.Portfolio
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()
			return portfolioMsg{prices: portfolio.PricesOnly(ctx)}
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) applyColumns() {
	m.table.SetRows(nil)
	if m.view == viewMarket {
		m.table.SetColumns([]table.Column{
			{Title: "Symbol", Width: 8},
			{Title: "Price", Width: 14},
			{Title: "24h %", Width: 9},
			{Title: "Volume 24h", Width: 16},
			{Title: "Market Cap", Width: 18},
		})
		return
	}
	m.table.SetColumns([]table.Column{
		{Title: "Pair", Width: 14},
		{Title: "Price", Width: 14},
		{Title: "24h %", Width: 9},
		{Title: "Volume 24h", Width: 14},
		{Title: "Source", Width: 14},
	})
}

func (m *Model) applyRows() {
	if m.view == viewMarket {
		m.table.SetRows(marketRows(m.market))
		return
	}
	m.table.SetRows(portfolioRows(m.portfolio))
}

func portfolioRows(p *domain.PortfolioPrices) []table.Row {
	if p == nil {
		return nil
	}
	rows := []table.Row{{p.MainToken.Symbol, price(p.MainToken.Price), change(p.MainToken.PriceChange24h), "", ""}}
	for _, line := range p.Pairs {
		rows = append(rows, table.Row{line.Pair, price(line.Price), change(line.PriceChange24h), whole(line.Volume24h), string(line.Source)})
	}
	return rows
}

func marketRows(quotes []*domain.MarketQuote) []table.Row {
	rows := make([]table.Row, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, table.Row{q.Symbol, price(&q.CurrentPrice), change(q.PriceChangePct24h), whole(q.Volume24h), whole(q.MarketCap)})
	}
	return rows
}

func price(p *float64) string {
	if p == nil {
		return "-"
	}
	d := decimal.NewFromFloat(*p)
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		return "$" + d.StringFixed(6)
	}
	return "$" + d.StringFixed(2)
}

func change(p *float64) string {
	if p == nil {
		return "-"
	}
	return decimal.NewFromFloat(*p).StringFixed(2) + "%"
}

func whole(p *float64) string {
	if p == nil {
		return "-"
	}
	return "$" + decimal.NewFromFloat(*p).StringFixed(0)
}
