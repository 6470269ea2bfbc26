package wizard

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/store"
)

// OrderModel is the bubbletea model for the order picker.
type OrderModel struct {
	records  []store.PaymentRecord
	cursor   int
	selected *store.PaymentRecord
	width    int
	height   int
}

// Styles for order picker
var (
	orderTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	orderItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	orderSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("237"))

	orderPendingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	orderDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	orderFailedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	orderDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// NewOrderModel creates a new order picker model.
func NewOrderModel(records []store.PaymentRecord) OrderModel {
	return OrderModel{
		records: records,
		width:   80,
		height:  20,
	}
}

// Init initializes the model.
func (m OrderModel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m OrderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit

		case "enter", " ":
			if len(m.records) > 0 && m.cursor < len(m.records) {
				m.selected = &m.records[m.cursor]
				return m, tea.Quit
			}

		case "up", "k", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j", "ctrl+n":
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			if len(m.records) > 0 {
				m.cursor = len(m.records) - 1
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// statusMark returns the indicator for an order status.
func statusMark(status string) string {
	switch core.OrderStatus(status) {
	case core.OrderCompleted:
		return orderDoneStyle.Render("● ")
	case core.OrderFailed, core.OrderCancelled:
		return orderFailedStyle.Render("✕ ")
	default:
		return orderPendingStyle.Render("○ ")
	}
}

// View renders the model.
func (m OrderModel) View() string {
	var b strings.Builder

	b.WriteString(orderTitleStyle.Render("Select Order"))
	b.WriteString("\n\n")

	if len(m.records) == 0 {
		b.WriteString(orderDimStyle.Render("No payments yet"))
		b.WriteString("\n\n")
		b.WriteString(orderDimStyle.Render("Start one with 'tunes pay create'."))
	} else {
		for i, rec := range m.records {
			var line strings.Builder
			line.WriteString(statusMark(rec.Status))
			line.WriteString(rec.ItemName)
			line.WriteString(" " + orderDimStyle.Render("("+FormatAmount(rec.Amount, rec.Currency)+", "+rec.Provider+")"))
			line.WriteString(orderDimStyle.Render(" - " + humanize.Time(rec.CreatedAt)))

			if i == m.cursor {
				b.WriteString(orderSelectedStyle.Render("▸ " + line.String()))
			} else {
				b.WriteString(orderItemStyle.Render("  " + line.String()))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(orderDimStyle.Render("↑/↓ navigate • enter select • esc quit"))
	b.WriteString("\n")
	b.WriteString(orderDimStyle.Render("● completed  ○ pending  ✕ failed/cancelled"))

	return b.String()
}

// Selected returns the selected record, or nil if none.
func (m OrderModel) Selected() *store.PaymentRecord {
	return m.selected
}

// RunOrderPicker runs the order picker and returns the selected record.
func RunOrderPicker(records []store.PaymentRecord) (*store.PaymentRecord, error) {
	model := NewOrderModel(records)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(OrderModel).Selected(), nil
}
