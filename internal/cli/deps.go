package cli

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/audio"
	"github.com/tessro/tunes/internal/backend"
	"github.com/tessro/tunes/internal/backend/auth"
	"github.com/tessro/tunes/internal/config"
	"github.com/tessro/tunes/internal/control"
	tuneserrors "github.com/tessro/tunes/internal/errors"
	"github.com/tessro/tunes/internal/idle"
	"github.com/tessro/tunes/internal/notify"
	"github.com/tessro/tunes/internal/orders"
	"github.com/tessro/tunes/internal/payment"
	"github.com/tessro/tunes/internal/playback"
	"github.com/tessro/tunes/internal/realtime"
	"github.com/tessro/tunes/internal/store"
)

func storePath() string {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path
	}
	return store.DefaultPath(config.Dir())
}

func openStore() (*store.Store, error) {
	st, err := store.Open(storePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return st, nil
}

func socketPath() string {
	return control.SocketPath(config.Dir())
}

func terminalNotifier() notify.Notifier {
	if JSONOutput() {
		return notify.Log{Logger: logger}
	}
	return notify.Multi{notify.NewTerminal(os.Stderr), notify.Log{Logger: logger}}
}

func newController(st *store.Store, n notify.Notifier) *playback.Controller {
	out := audio.NewSpeaker(cfg.Player.SampleRate, logger.Named("speaker"))
	loader := audio.NewLoader(
		audio.WithMaxBytes(cfg.Player.MaxMediaBytes),
		audio.WithLoaderLogger(logger.Named("loader")),
	)
	return playback.New(out, loader,
		playback.WithLogger(logger.Named("player")),
		playback.WithNotifier(n),
		playback.WithMemory(playback.KVMemory{KV: st}),
		playback.WithMemoryDuration(config.Seconds(cfg.Player.MemoryDuration)),
		playback.WithProgressInterval(config.Millis(cfg.Player.ProgressInterval)),
		playback.WithVolume(float64(cfg.Player.Volume)/100),
	)
}

func newDetector() *idle.Detector {
	return idle.New(idle.Config{
		Threshold:         config.Millis(cfg.Idle.Threshold),
		DetectionInterval: config.Millis(cfg.Idle.DetectionInterval),
		Events:            cfg.Idle.Events,
		MaxActivations:    cfg.Idle.MaxActivations,
	}, idle.WithLogger(logger.Named("idle")))
}

// gateIdle keeps the detector from going idle while the controller plays.
// It returns when the subscription closes.
func gateIdle(sub *playback.Subscription, d *idle.Detector) {
	for ev := range sub.C() {
		d.SetMediaPlaying(ev.State.IsPlaying())
	}
}

func newBackend() (*backend.Client, error) {
	storage, err := auth.NewSessionStorage("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session storage: %w", err)
	}

	client := backend.New(cfg.Backend, storage)
	if !client.Configured() {
		return nil, tuneserrors.WithSuggestion(tuneserrors.ErrBackendUnavailable,
			"Set backend.url and backend.anon_key in ~/.tunesrc or via TUNES_BACKEND_URL and TUNES_BACKEND_ANON_KEY")
	}
	client.SetLogger(logger.Named("backend"))
	if err := client.LoadSession(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return client, nil
}

// paymentDeps holds everything a payment command needs. close releases
// whatever was opened.
type paymentDeps struct {
	backend      *backend.Client
	store        *store.Store
	orchestrator *payment.Orchestrator
	returns      *payment.ReturnServer
	closers      []func()
}

func (d *paymentDeps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// newPaymentDeps wires the orchestrator. withReturns starts the local
// return server so checkout redirects come back to this process.
func newPaymentDeps(ctx context.Context, withReturns bool) (*paymentDeps, error) {
	client, err := newBackend()
	if err != nil {
		return nil, err
	}

	deps := &paymentDeps{backend: client}
	opts := []payment.Option{
		payment.WithLogger(logger.Named("payment")),
		payment.WithNotifier(terminalNotifier()),
		payment.WithPollInterval(config.Millis(cfg.Payment.PollInterval)),
		payment.WithRedirectTimeout(config.Seconds(cfg.Payment.RedirectTimeout)),
		payment.WithDefaultCurrency(cfg.Payment.Currency),
	}

	st, err := openStore()
	if err != nil {
		logger.Warn("payment history disabled", zap.Error(err))
	} else {
		deps.store = st
		deps.closers = append(deps.closers, func() { _ = st.Close() })
		opts = append(opts, payment.WithHistory(st))
	}

	if cfg.Backend.StatusSource == "postgres" {
		pg, err := orders.Connect(ctx, cfg.Backend.DatabaseURL, logger.Named("orders"))
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.closers = append(deps.closers, pg.Close)
		opts = append(opts, payment.WithStatusReader(pg))
	}

	if cfg.Redis.Addr != "" {
		feed, err := realtime.Dial(ctx, cfg.Redis.Addr, cfg.Redis.ChannelPrefix, logger.Named("realtime"))
		if err != nil {
			// Polling still works without push.
			logger.Warn("realtime updates unavailable", zap.Error(err))
		} else {
			deps.closers = append(deps.closers, func() { _ = feed.Close() })
			opts = append(opts, payment.WithUpdates(feed))
		}
	}

	if withReturns {
		rs, err := payment.NewReturnServer(cfg.Payment.ReturnPort)
		if err != nil {
			deps.close()
			return nil, err
		}
		rs.Start()
		deps.returns = rs
		deps.closers = append(deps.closers, func() { _ = rs.Shutdown(context.Background()) })
		opts = append(opts, payment.WithReturnWaiter(rs))
	}

	deps.orchestrator = payment.New(client, opts...)
	return deps, nil
}
