package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/notify"
)

// Messages shown while sending the user to a provider.
const (
	MsgPendingProcessing = "If you completed the payment, it may take a few minutes to process."
	MsgMpesaPrompt       = "Please check your phone for the M-Pesa payment prompt."
	MsgRemitlyRedirect   = "Redirecting to Remitly for international transfer to M-Pesa..."
	MsgPopupBlocked      = "Could not open a browser. The payment link was copied to your clipboard."
)

// RedirectOutcome describes what happened after a session was created.
type RedirectOutcome struct {
	// Opened is true when a browser was launched on the session URL.
	Opened bool
	// Copied is true when the URL went to the clipboard instead.
	Copied bool
	// Return is the provider redirect, when one arrived.
	Return *ReturnResult
	// TimedOut is true when no redirect arrived in time.
	TimedOut bool
	// Message is the last message shown to the user.
	Message string
}

// Redirect sends the user to the provider. With a URL it opens the browser
// (falling back to the clipboard) and, when a return server is set, waits
// for the provider to send the user back. Push methods without a URL get
// an instruction instead.
func (o *Orchestrator) Redirect(ctx context.Context, data SessionData) *RedirectOutcome {
	out := &RedirectOutcome{}
	log := o.logger.With(zap.String("provider", data.Provider), zap.String("session_id", data.SessionID))

	if data.URL == "" {
		switch Method(data.Provider) {
		case MethodMpesa:
			msg := data.Message
			if msg == "" {
				msg = MsgMpesaPrompt
			}
			o.info(out, "M-Pesa Payment", msg)
		case MethodRemitly:
			o.info(out, "Remitly Transfer", MsgRemitlyRedirect)
		default:
			log.Warn("payment session has no redirect url")
		}
		return out
	}

	if Method(data.Provider) == MethodRemitly {
		o.info(out, "Remitly Transfer", MsgRemitlyRedirect)
	}

	if err := o.openURL(data.URL); err != nil {
		log.Debug("browser open failed", zap.Error(err))
		msg := MsgPopupBlocked
		if cerr := o.copyText(data.URL); cerr != nil {
			log.Debug("clipboard write failed", zap.Error(cerr))
			msg = fmt.Sprintf("Could not open a browser. Open this link to pay: %s", data.URL)
		} else {
			out.Copied = true
		}
		out.Message = msg
		o.notifier.Notify(notify.Notification{
			Title:   "Popup Blocked",
			Message: msg,
			Level:   notify.LevelWarning,
			At:      o.clock.Now(),
		})
	} else {
		out.Opened = true
	}

	if o.returns == nil {
		return out
	}

	result, err := o.waitReturn(ctx)
	switch {
	case err == nil:
		out.Return = &result
		if result.Outcome == ReturnCancel {
			o.notify(out, "Payment Cancelled", "The payment was cancelled.", notify.LevelWarning)
		} else {
			o.notify(out, "Payment Submitted", "Confirming your payment...", notify.LevelSuccess)
		}
	case ctx.Err() != nil:
		log.Debug("redirect wait cancelled", zap.Error(ctx.Err()))
	default:
		out.TimedOut = true
		o.info(out, "Payment Pending", MsgPendingProcessing)
	}
	return out
}

var errReturnTimeout = fmt.Errorf("timed out waiting for the payment provider")

func (o *Orchestrator) waitReturn(ctx context.Context) (ReturnResult, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type waitResult struct {
		result ReturnResult
		err    error
	}
	done := make(chan waitResult, 1)
	go func() {
		r, err := o.returns.Wait(waitCtx)
		done <- waitResult{r, err}
	}()

	timer := o.clock.NewTimer(o.redirectTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.result, r.err
	case <-timer.Chan():
		return ReturnResult{}, errReturnTimeout
	case <-ctx.Done():
		return ReturnResult{}, ctx.Err()
	}
}

func (o *Orchestrator) info(out *RedirectOutcome, title, msg string) {
	o.notify(out, title, msg, notify.LevelInfo)
}

func (o *Orchestrator) notify(out *RedirectOutcome, title, msg string, level notify.Level) {
	out.Message = msg
	o.notifier.Notify(notify.Notification{Title: title, Message: msg, Level: level, At: o.clock.Now()})
}
