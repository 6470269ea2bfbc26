package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
	"github.com/tessro/tunes/internal/payment"
	"github.com/tessro/tunes/internal/store"
	"github.com/tessro/tunes/internal/wizard"
)

var (
	payType     string
	payItemID   string
	payItemName string
	payAmount   int64
	payCurrency string
	payMethod   string
	payPhone    string
	payNoWait   bool

	watchTimestamp bool
	watchNoEmoji   bool

	historyLimit int
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Pay for subscriptions, lessons and products",
	Long:  `Commands for creating payment sessions and following their orders.`,
}

var payCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a checkout",
	Long: `Create an order and a payment session, then send you to the provider.

Card and Remitly payments open a checkout page in your browser; M-Pesa
sends a prompt to your phone. Missing details are asked for when running
in a terminal.

Examples:
  tunes pay create --type subscription --item-id premium --item-name "Premium" --amount 999
  tunes pay create --type service --item-id lesson-4 --item-name "Lesson" --amount 150000 \
      --currency KES --method mpesa --phone +254712345678`,
	Args: cobra.NoArgs,
	RunE: runPayCreate,
}

var payStatusCmd = &cobra.Command{
	Use:   "status <order-id>",
	Short: "Show an order's payment status",
	Args:  cobra.ExactArgs(1),
	RunE:  runPayStatus,
}

var payWatchCmd = &cobra.Command{
	Use:   "watch [order-id]",
	Short: "Follow an order until it completes",
	Long: `Print an order's status changes as they happen, until the order
completes, fails or is cancelled. Without an order id, pick one of your
recent orders.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPayWatch,
}

var payHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent payment sessions",
	Args:  cobra.NoArgs,
	RunE:  runPayHistory,
}

func init() {
	f := payCreateCmd.Flags()
	f.StringVarP(&payType, "type", "t", "", "order type: subscription, service or product")
	f.StringVar(&payItemID, "item-id", "", "item identifier")
	f.StringVar(&payItemName, "item-name", "", "item display name")
	f.Int64Var(&payAmount, "amount", 0, "amount in minor units (e.g. cents)")
	f.StringVar(&payCurrency, "currency", "", "3-letter currency code (default from config)")
	f.StringVarP(&payMethod, "method", "m", "", "payment method: paystack, remitly or mpesa")
	f.StringVar(&payPhone, "phone", "", "phone number for M-Pesa")
	f.BoolVar(&payNoWait, "no-wait", false, "don't wait for the provider to send you back")

	payWatchCmd.Flags().BoolVarP(&watchTimestamp, "timestamp", "t", false, "show timestamps")
	payWatchCmd.Flags().BoolVar(&watchNoEmoji, "no-emoji", false, "disable emoji output")

	payHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of sessions to show")

	payCmd.AddCommand(payCreateCmd)
	payCmd.AddCommand(payStatusCmd)
	payCmd.AddCommand(payWatchCmd)
	payCmd.AddCommand(payHistoryCmd)
	rootCmd.AddCommand(payCmd)
}

func newInteractive() *wizard.Interactive {
	i := wizard.NewInteractive()
	i.SetEnabled(!noInput && !JSONOutput())
	return i
}

func runPayCreate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := payment.Request{
		OrderType: payment.OrderType(payType),
		ItemID:    payItemID,
		ItemName:  payItemName,
		Amount:    payAmount,
		Currency:  payCurrency,
		Phone:     payPhone,
	}
	method := payMethod
	if method == "" {
		method = cfg.Payment.DefaultMethod
	}
	if method != "" {
		m, err := payment.ParseMethod(method)
		if err != nil {
			return tuneserrors.New(tuneserrors.KindValidation, fmt.Errorf("%w: %w", tuneserrors.ErrValidation, err))
		}
		req.Method = m
	}

	req, err := newInteractive().PromptPayment(req)
	if err != nil {
		return err
	}

	deps, err := newPaymentDeps(ctx, !payNoWait)
	if err != nil {
		return err
	}
	defer deps.close()

	session, outcome, err := deps.orchestrator.Process(ctx, req)
	if err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]any{
			"order_id": session.OrderID,
			"session":  session.Data,
			"redirect": outcome,
		})
	}

	fmt.Printf("%s Order %s created (%s)\n", okColor.Sprint("✓"), session.OrderID,
		wizard.FormatAmount(req.Amount, currencyOr(req.Currency)))
	if outcome == nil {
		return nil
	}
	if outcome.Message != "" {
		fmt.Println(outcome.Message)
	}
	if !outcome.Opened && session.Data.URL != "" {
		fmt.Printf("Checkout: %s\n", session.Data.URL)
	}
	switch {
	case outcome.Return != nil:
		fmt.Printf("Provider returned: %s\n", outcome.Return.Outcome)
	case outcome.TimedOut:
		fmt.Println(dimColor.Sprint("No return from the provider yet."))
	}
	fmt.Println(dimColor.Sprintf("Follow it with 'tunes pay watch %s'", session.OrderID))
	return nil
}

func currencyOr(c string) string {
	if c != "" {
		return c
	}
	if cfg.Payment.Currency != "" {
		return cfg.Payment.Currency
	}
	return payment.DefaultCurrency
}

func runPayStatus(cmd *cobra.Command, args []string) error {
	deps, err := newPaymentDeps(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer deps.close()

	snap, err := deps.orchestrator.CheckStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if snap == nil {
		return tuneserrors.WithSuggestion(
			fmt.Errorf("%w: %s", tuneserrors.ErrOrderNotFound, args[0]),
			"Run 'tunes pay history' to list your recent orders")
	}

	if JSONOutput() {
		return printJSON(snap)
	}
	fmt.Printf("Order:    %s\n", snap.ID)
	fmt.Printf("Status:   %s\n", OrderStatusColor(string(snap.Status)))
	if snap.ProviderID != "" {
		fmt.Printf("Provider: %s\n", snap.ProviderID)
	}
	if !snap.UpdatedAt.IsZero() {
		fmt.Printf("Updated:  %s\n", FormatAgo(snap.UpdatedAt))
	}
	return nil
}

func runPayWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := newPaymentDeps(ctx, false)
	if err != nil {
		return err
	}
	defer deps.close()

	var orderID string
	if len(args) > 0 {
		orderID = args[0]
	} else {
		orderID, err = pickOrder(ctx, deps.store)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	w := deps.orchestrator.Watcher(orderID)
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()

	for ev := range w.Events() {
		if JSONOutput() {
			_ = printJSON(ev)
			continue
		}
		fmt.Println(formatStatusEvent(ev, !watchNoEmoji, watchTimestamp))
	}

	err = <-errCh
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pickOrder offers the recent orders in a picker.
func pickOrder(ctx context.Context, st *store.Store) (string, error) {
	missing := tuneserrors.New(tuneserrors.KindValidation,
		fmt.Errorf("%w: order id is required", tuneserrors.ErrValidation))
	if st == nil {
		return "", missing
	}
	interactive := newInteractive()
	if !interactive.CanInteract() {
		return "", missing
	}

	records, err := st.ListSessions(ctx, 20)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", tuneserrors.WithSuggestion(missing, "Start a checkout with 'tunes pay create'")
	}
	rec, err := interactive.PromptOrder(records)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", context.Canceled
	}
	return rec.OrderID, nil
}

// formatStatusEvent renders one status change as a line.
func formatStatusEvent(ev payment.StatusEvent, emoji, timestamp bool) string {
	var prefix string
	if timestamp {
		prefix = ev.At.Local().Format("15:04:05") + " "
	}
	status := core.OrderStatus("")
	if ev.Current != nil {
		status = ev.Current.Status
	}
	if emoji {
		prefix += statusEmoji(status) + " "
	}

	line := fmt.Sprintf("%s%s %s", prefix, ev.OrderID, OrderStatusColor(string(status)))
	if ev.Previous != "" {
		line += dimColor.Sprintf(" (was %s)", ev.Previous)
	}
	return line
}

func statusEmoji(s core.OrderStatus) string {
	switch s {
	case core.OrderCompleted:
		return "✅"
	case core.OrderFailed:
		return "❌"
	case core.OrderCancelled:
		return "🚫"
	default:
		return "⏳"
	}
}

func runPayHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	records, err := st.ListSessions(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list payment sessions: %w", err)
	}

	if JSONOutput() {
		if records == nil {
			records = []store.PaymentRecord{}
		}
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("No payment sessions yet.")
		return nil
	}

	t := NewTable("Order", "Item", "Amount", "Provider", "Status", "Created")
	for _, r := range records {
		t.AppendRow([]any{
			TruncateString(r.OrderID, 14),
			TruncateString(r.ItemName, 28),
			wizard.FormatAmount(r.Amount, r.Currency),
			r.Provider,
			OrderStatusColor(r.Status),
			FormatAgo(r.CreatedAt),
		})
	}
	t.Render()
	return nil
}
