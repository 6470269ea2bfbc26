package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/backend"
	"github.com/tessro/tunes/internal/browser"
	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
	"github.com/tessro/tunes/internal/notify"
	"github.com/tessro/tunes/internal/store"
)

// CreateSessionFunction is the backend function that creates the order and
// the provider session.
const CreateSessionFunction = "create-payment-session"

const (
	DefaultRedirectTimeout = 15 * time.Minute
	DefaultPollInterval    = 3 * time.Second
)

// Backend is the part of the backend client the orchestrator needs.
type Backend interface {
	HasSession() bool
	AccessToken(ctx context.Context) (string, error)
	InvokeFunction(ctx context.Context, name string, body, result any) error
}

// StatusReader reads an order's payment state. A missing order is
// reported as (nil, nil).
type StatusReader interface {
	OrderStatus(ctx context.Context, orderID string) (*core.OrderSnapshot, error)
}

// Updates streams pushed status changes for an order.
type Updates interface {
	Updates(ctx context.Context, orderID string) (<-chan core.OrderSnapshot, error)
}

// History records created sessions locally.
type History interface {
	RecordSession(ctx context.Context, rec store.PaymentRecord) error
	UpdateStatus(ctx context.Context, orderID, status string, at time.Time) (bool, error)
}

// Orchestrator creates payment sessions and follows them.
type Orchestrator struct {
	backend         Backend
	status          StatusReader
	updates         Updates
	history         History
	returns         ReturnWaiter
	notifier        notify.Notifier
	logger          *zap.Logger
	clock           clockwork.Clock
	openURL         func(string) error
	copyText        func(string) error
	redirectTimeout time.Duration
	pollInterval    time.Duration
	currency        string

	mu       sync.Mutex
	inFlight map[uint64]int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStatusReader sets where order status is read from. By default the
// backend is used when it can read status itself.
func WithStatusReader(r StatusReader) Option {
	return func(o *Orchestrator) { o.status = r }
}

// WithUpdates sets a push source that wakes status watchers early.
func WithUpdates(u Updates) Option {
	return func(o *Orchestrator) { o.updates = u }
}

// WithHistory records created sessions and status changes.
func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithReturnWaiter sets the receiver for provider redirects.
func WithReturnWaiter(w ReturnWaiter) Option {
	return func(o *Orchestrator) { o.returns = w }
}

// WithNotifier sets where user-facing messages go.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for redirect timeouts and polling.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithBrowser replaces the URL opener.
func WithBrowser(open func(string) error) Option {
	return func(o *Orchestrator) { o.openURL = open }
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(o *Orchestrator) { o.copyText = write }
}

// WithRedirectTimeout sets how long Redirect waits for the provider to
// send the user back.
func WithRedirectTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.redirectTimeout = d
		}
	}
}

// WithPollInterval sets the status polling interval for watchers.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithDefaultCurrency sets the currency used when a request has none.
func WithDefaultCurrency(c string) Option {
	return func(o *Orchestrator) { o.currency = c }
}

// New creates an orchestrator.
func New(b Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:         b,
		notifier:        notify.Nop{},
		logger:          zap.NewNop(),
		clock:           clockwork.NewRealClock(),
		openURL:         browser.Open,
		copyText:        clipboard.WriteAll,
		redirectTimeout: DefaultRedirectTimeout,
		pollInterval:    DefaultPollInterval,
		currency:        DefaultCurrency,
		inFlight:        make(map[uint64]int),
	}
	if r, ok := b.(StatusReader); ok {
		o.status = r
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateSession validates req, creates the order and provider session, and
// records it. Validation and missing sign-in fail before any network call.
// Failures are classified and also published as notifications.
func (o *Orchestrator) CreateSession(ctx context.Context, req Request) (*Session, error) {
	req.normalize(o.currency)
	if err := req.Validate(); err != nil {
		o.logger.Debug("payment request rejected", zap.Error(err))
		o.fail(err)
		return nil, err
	}

	if o.backend == nil || !o.backend.HasSession() {
		err := tuneserrors.New(tuneserrors.KindAuthRequired, tuneserrors.ErrNotAuthenticated)
		o.fail(err)
		return nil, err
	}
	if _, err := o.backend.AccessToken(ctx); err != nil {
		err = classify(err)
		o.fail(err)
		return nil, err
	}

	if o.returns != nil {
		if req.SuccessURL == "" {
			req.SuccessURL = o.returns.SuccessURL()
		}
		if req.CancelURL == "" {
			req.CancelURL = o.returns.CancelURL()
		}
	}

	log := o.logger.With(
		zap.String("method", string(req.Method)),
		zap.String("item_id", req.ItemID),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
	)
	done := o.enter(req, log)
	defer done()

	var resp createResponse
	if err := o.backend.InvokeFunction(ctx, CreateSessionFunction, req, &resp); err != nil {
		err = classify(err)
		log.Warn("payment session failed", zap.Error(err), zap.String("kind", tuneserrors.KindOf(err).String()))
		o.fail(err)
		return nil, err
	}
	if !resp.Success || resp.SessionData == nil || resp.OrderID == "" {
		text := resp.Error
		if text == "" {
			text = resp.Message
		}
		if text == "" {
			text = "failed to create payment session"
		}
		err := classify(errors.New(text))
		log.Warn("payment session rejected", zap.Error(err))
		o.fail(err)
		return nil, err
	}

	session := &Session{OrderID: resp.OrderID, Data: *resp.SessionData}
	log.Info("payment session created",
		zap.String("order_id", session.OrderID),
		zap.String("session_id", session.Data.SessionID),
		zap.String("provider", session.Data.Provider))
	o.record(ctx, req, session)
	return session, nil
}

// CheckStatus reads the order's current payment state. It returns (nil,
// nil) when the order does not exist.
func (o *Orchestrator) CheckStatus(ctx context.Context, orderID string) (*core.OrderSnapshot, error) {
	if o.status == nil {
		return nil, tuneserrors.ErrBackendUnavailable
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, tuneserrors.New(tuneserrors.KindValidation, errors.New("order id is required"))
	}
	snap, err := o.status.OrderStatus(ctx, orderID)
	if err != nil {
		o.logger.Warn("payment status check failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	if snap != nil {
		o.updateHistory(ctx, snap)
	}
	return snap, nil
}

// Process creates a session and sends the user to it.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Session, *RedirectOutcome, error) {
	session, err := o.CreateSession(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	outcome := o.Redirect(ctx, session.Data)
	return session, outcome, nil
}

// Watcher returns a status watcher for orderID that shares the
// orchestrator's reader, push source and history.
func (o *Orchestrator) Watcher(orderID string) *Watcher {
	opts := []WatcherOption{
		WithWatcherClock(o.clock),
		WithWatcherLogger(o.logger),
		OnChange(func(ev StatusEvent) {
			o.updateHistory(context.Background(), ev.Current)
		}),
	}
	if o.updates != nil {
		opts = append(opts, WithPush(o.updates))
	}
	return NewWatcher(o.status, orderID, o.pollInterval, opts...)
}

func (o *Orchestrator) enter(req Request, log *zap.Logger) func() {
	fp, err := req.fingerprint()
	if err != nil {
		log.Debug("could not fingerprint payment request", zap.Error(err))
		return func() {}
	}

	o.mu.Lock()
	o.inFlight[fp]++
	n := o.inFlight[fp]
	o.mu.Unlock()
	if n > 1 {
		log.Warn("duplicate payment request in flight", zap.Int("in_flight", n))
	}

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.inFlight[fp]--; o.inFlight[fp] <= 0 {
			delete(o.inFlight, fp)
		}
	}
}

func (o *Orchestrator) fail(err error) {
	title := "Payment Error"
	if tuneserrors.KindOf(err) == tuneserrors.KindValidation {
		title = "Invalid Payment"
	}
	o.notifier.Notify(notify.Notification{
		Title:   title,
		Message: tuneserrors.UserMessage(err),
		Level:   notify.LevelError,
		At:      o.clock.Now(),
	})
}

func (o *Orchestrator) record(ctx context.Context, req Request, s *Session) {
	if o.history == nil {
		return
	}
	now := o.clock.Now()
	rec := store.PaymentRecord{
		OrderID:   s.OrderID,
		SessionID: s.Data.SessionID,
		Provider:  s.Data.Provider,
		OrderType: string(req.OrderType),
		ItemID:    req.ItemID,
		ItemName:  req.ItemName,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    string(core.OrderPending),
		URL:       s.Data.URL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec.Provider == "" {
		rec.Provider = string(req.Method)
	}
	if err := o.history.RecordSession(ctx, rec); err != nil {
		o.logger.Warn("failed to record payment session", zap.String("order_id", s.OrderID), zap.Error(err))
	}
}

func (o *Orchestrator) updateHistory(ctx context.Context, snap *core.OrderSnapshot) {
	if o.history == nil || snap == nil {
		return
	}
	at := snap.UpdatedAt
	if at.IsZero() {
		at = o.clock.Now()
	}
	if _, err := o.history.UpdateStatus(ctx, snap.ID, string(snap.Status), at); err != nil {
		o.logger.Debug("failed to update payment history", zap.String("order_id", snap.ID), zap.Error(err))
	}
}

// classify tags err with one of the payment failure kinds: validation,
// auth required, provider config, provider rejected or unknown. Errors the
// backend already tagged with one of those keep it. Anything else, network
// failures included, is unknown.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch kind := tuneserrors.KindOf(err); kind {
	case tuneserrors.KindValidation, tuneserrors.KindAuthRequired,
		tuneserrors.KindProviderConfig, tuneserrors.KindProviderRejected:
		return tuneserrors.New(kind, err)
	case tuneserrors.KindUnknown:
	default:
		return tuneserrors.New(tuneserrors.KindUnknown, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return tuneserrors.New(tuneserrors.KindUnknown, err)
	}

	text := strings.ToLower(err.Error())
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		text = strings.ToLower(apiErr.Detail + " " + apiErr.Message)
	}

	switch {
	case containsAny(text, "missing required fields", "amount must be greater", "phone number required", "invalid phone"):
		return tuneserrors.New(tuneserrors.KindValidation, fmt.Errorf("%w: %w", tuneserrors.ErrValidation, err))
	case containsAny(text, "not configured", "configuration missing", "credentials"):
		return tuneserrors.New(tuneserrors.KindProviderConfig, fmt.Errorf("%w: %w", tuneserrors.ErrProviderConfig, err))
	case containsAny(text, "paystack", "m-pesa", "mpesa", "stk push", "remitly"):
		return tuneserrors.New(tuneserrors.KindProviderRejected, fmt.Errorf("%w: %w", tuneserrors.ErrProviderRejected, err))
	}
	if apiErr != nil && apiErr.Status == http.StatusBadRequest {
		return tuneserrors.New(tuneserrors.KindValidation, fmt.Errorf("%w: %w", tuneserrors.ErrValidation, err))
	}
	return tuneserrors.New(tuneserrors.KindUnknown, err)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
