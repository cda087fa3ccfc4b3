// Package processor runs the ingestion pipeline: fetch alert mails,
// normalize them, decide delivery through the dedup engine and fan the
// survivors out to notification chats. Every message is audited whether
// or not it gets delivered.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"soc-alert-relay-go/internal/assets"
	"soc-alert-relay-go/internal/dedup"
	"soc-alert-relay-go/internal/enrich"
	"soc-alert-relay-go/internal/fetcher"
	"soc-alert-relay-go/internal/fingerprint"
	"soc-alert-relay-go/internal/metrics"
	"soc-alert-relay-go/internal/model"
	"soc-alert-relay-go/internal/notify"
	"soc-alert-relay-go/internal/parser"
)

// AuditLog is the slice of the storage repository the pipeline writes to.
type AuditLog interface {
	SeenAlert(messageUID string) (bool, error)
	SaveAlert(alert *model.Alert) error
	SaveEvent(event *model.EventRecord) error
	MarkAlertProcessed(alertID uint) error
	LogDispatch(dispatch *model.Dispatch) error
}

// AssetRegistry classifies devices and auto-registers first-seen ones.
type AssetRegistry interface {
	assets.Classifier
	Ensure(ctx context.Context, device string) error
}

// Params wires a Processor.
type Params struct {
	Fetcher    fetcher.EmailFetcher
	Engine     *dedup.Engine
	Audit      AuditLog
	Assets     AssetRegistry
	Narrator   enrich.Narrator // nil disables narration
	Notifier   notify.Notifier
	Metrics    *metrics.Metrics
	Sweeper    dedup.Sweeper // nil when the store backend expires records itself
	FetchLimit int
}

// Processor is one ingestion pipeline instance. Cycles must not overlap;
// the scheduler guarantees that.
type Processor struct {
	fetcher  fetcher.EmailFetcher
	engine   *dedup.Engine
	audit    AuditLog
	assets   AssetRegistry
	narrator enrich.Narrator
	notifier notify.Notifier
	metrics  *metrics.Metrics
	sweeper  dedup.Sweeper
	limit    int

	// now supplies the arrival time for dedup decisions.
	now func() time.Time
}

func New(p Params) *Processor {
	return &Processor{
		fetcher:  p.Fetcher,
		engine:   p.Engine,
		audit:    p.Audit,
		assets:   p.Assets,
		narrator: p.Narrator,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		sweeper:  p.Sweeper,
		limit:    p.FetchLimit,
		now:      time.Now,
	}
}

// CycleStats summarizes one processing cycle.
type CycleStats struct {
	Fetched    int `json:"fetched"`
	Delivered  int `json:"delivered"`
	Bursts     int `json:"bursts"`
	Suppressed int `json:"suppressed"`
	Invalid    int `json:"invalid"`
	Skipped    int `json:"skipped"`
	Failures   int `json:"failures"`
}

// ProcessCycle fetches and processes one batch of mail. Messages are
// handled sequentially in arrival order, which keeps per-fingerprint
// arrival times non-decreasing for the engine.
func (p *Processor) ProcessCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	var stats CycleStats

	emails, err := p.fetcher.FetchNew(ctx, p.limit)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch mail: %w", err)
	}
	stats.Fetched = len(emails)
	p.metrics.MailsFetched.Add(float64(len(emails)))

	var done []string
	for i := range emails {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if p.processEmail(ctx, &emails[i], &stats) {
			done = append(done, emails[i].ID)
		}
	}

	if len(done) > 0 {
		if err := p.fetcher.MarkProcessed(ctx, done); err != nil {
			logrus.Errorf("Failed to mark processed mail: %v", err)
		}
	}

	p.sweep(ctx)

	p.metrics.CyclesTotal.Inc()
	p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	p.metrics.LastCycleTime.Set(float64(time.Now().Unix()))

	logrus.Infof("Cycle complete: fetched=%d delivered=%d bursts=%d suppressed=%d invalid=%d skipped=%d failures=%d",
		stats.Fetched, stats.Delivered, stats.Bursts, stats.Suppressed, stats.Invalid, stats.Skipped, stats.Failures)
	return stats, nil
}

// processEmail handles one message end to end. The return value reports
// whether the message may be marked processed in the mailbox; dispatch
// failure keeps it unmarked so the next cycle retries it.
func (p *Processor) processEmail(ctx context.Context, email *fetcher.InboundEmail, stats *CycleStats) bool {
	seen, err := p.audit.SeenAlert(email.ID)
	if err != nil {
		// Prefer a duplicate notification over a lost alert.
		logrus.Warnf("Idempotency check failed for %s, processing anyway: %v", email.ID, err)
	}
	if seen {
		stats.Skipped++
		return true
	}

	ev := parser.Parse(email.Raw)

	validity := "valid"
	if !ev.Valid {
		validity = "invalid"
	}
	p.metrics.ParseResults.WithLabelValues(validity).Inc()

	alert := &model.Alert{
		MessageUID:  email.ID,
		Subject:     email.Subject,
		Sender:      email.From,
		ReceivedAt:  email.Raw.ReceivedAt,
		ContentType: string(email.Raw.ContentType),
		RawText:     ev.RawText,
		ParseValid:  ev.Valid,
		ParseReason: string(ev.Reason),
	}
	if err := p.audit.SaveAlert(alert); err != nil {
		logrus.Errorf("Failed to audit alert %s: %v", email.ID, err)
	}

	var fp model.Fingerprint
	if ev.Valid {
		fp, err = fingerprint.Compute(ev)
		if err != nil {
			logrus.Errorf("Fingerprint failed for %s: %v", email.ID, err)
			stats.Failures++
			return false
		}
	}

	record := eventRow(alert.ID, ev, fp)
	if err := p.audit.SaveEvent(record); err != nil {
		logrus.Errorf("Failed to audit event for %s: %v", email.ID, err)
	}

	if !ev.Valid {
		logrus.Warnf("Incomplete event from %s (%s); audited, not dispatched", email.ID, ev.Reason)
		stats.Invalid++
		p.markProcessed(alert.ID)
		return true
	}

	if err := p.assets.Ensure(ctx, ev.Device); err != nil {
		logrus.Warnf("Failed to register asset %s: %v", ev.Device, err)
	}

	outcome := p.engine.Decide(ctx, fp, p.now())
	if outcome.Degraded {
		p.metrics.StoreDegraded.Inc()
	}
	p.metrics.Decisions.WithLabelValues(string(outcome.Decision)).Inc()
	logrus.Infof("Decision %s for fingerprint %s (repeat %d)", outcome.Decision, fp.Short(), outcome.RepeatCount)

	if outcome.Decision == model.DecisionSuppress {
		stats.Suppressed++
		p.markProcessed(alert.ID)
		return true
	}

	if err := p.dispatch(ctx, ev, fp, outcome, record.ID); err != nil {
		logrus.Errorf("Dispatch failed for %s, message will retry: %v", email.ID, err)
		stats.Failures++
		return false
	}

	if outcome.Decision == model.DecisionBurst {
		stats.Bursts++
	} else {
		stats.Delivered++
	}
	p.markProcessed(alert.ID)
	return true
}

// dispatch enriches a deliverable event and fans it out. Every attempted
// chat is audited regardless of its result.
func (p *Processor) dispatch(ctx context.Context, ev model.NormalizedEvent, fp model.Fingerprint, outcome dedup.Outcome, eventID uint) error {
	cls, err := p.assets.Classify(ctx, ev.Device)
	if err != nil {
		logrus.Warnf("Classification failed for %s, treating as unclassified: %v", ev.Device, err)
		cls = model.Unclassified(ev.Device)
	}

	assessment := enrich.Evaluate(ev, cls.Class)
	text, narrated := p.buildText(ctx, ev, cls, assessment, outcome.RepeatCount)

	d := notify.Dispatch{
		Event:          ev,
		Fingerprint:    fp,
		Decision:       outcome.Decision,
		RepeatCount:    outcome.RepeatCount,
		Classification: cls,
		Risk:           assessment.Risk,
		Text:           text,
	}

	deliveries, sendErr := p.notifier.Send(ctx, d)
	for _, delivery := range deliveries {
		row := &model.Dispatch{
			EventID:     eventID,
			ChatID:      delivery.ChatID,
			Decision:    string(outcome.Decision),
			Risk:        string(assessment.Risk),
			RepeatCount: outcome.RepeatCount,
			Narrative:   narrated,
			SentText:    text,
			Status:      "sent",
		}
		if delivery.Err != nil {
			row.Status = "failed"
			row.ErrorMsg = delivery.Err.Error()
		}
		if err := p.audit.LogDispatch(row); err != nil {
			logrus.Errorf("Failed to log dispatch: %v", err)
		}
		p.metrics.TelegramSends.WithLabelValues(row.Status).Inc()
	}

	if sendErr != nil {
		return fmt.Errorf("notifier: %w", sendErr)
	}
	return nil
}

// buildText prefers the narrator when one is configured and falls back
// to the deterministic summary on any failure. The bool reports whether
// the text is a narration.
func (p *Processor) buildText(ctx context.Context, ev model.NormalizedEvent, cls model.AssetClassification, a enrich.Assessment, repeats int) (string, bool) {
	if p.narrator == nil {
		return enrich.Summary(ev, cls, a, repeats), false
	}

	text, err := p.narrator.Narrate(ctx, ev, cls, a, repeats)
	if err != nil {
		logrus.Warnf("Narration failed, using rules summary: %v", err)
		p.metrics.NarratorFallbacks.Inc()
		return enrich.Summary(ev, cls, a, repeats) + "\nLLM fallback: " + errToken(err), false
	}
	return text, true
}

// errToken reduces an error to a short single-line marker for message
// bodies and audit rows.
func errToken(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 128 {
		s = s[:128]
	}
	return s
}

func (p *Processor) markProcessed(alertID uint) {
	if alertID == 0 {
		return
	}
	if err := p.audit.MarkAlertProcessed(alertID); err != nil {
		logrus.Errorf("Failed to mark alert %d processed: %v", alertID, err)
	}
}

// sweep trims dedup records whose window ended more than one window ago.
// Lazy supersede in the engine keeps correctness either way; this only
// bounds store growth.
func (p *Processor) sweep(ctx context.Context) {
	if p.sweeper == nil {
		return
	}
	cutoff := p.now().Add(-p.engine.Window())
	removed, err := p.sweeper.Sweep(ctx, cutoff)
	if err != nil {
		logrus.Warnf("Dedup sweep failed: %v", err)
		return
	}
	if removed > 0 {
		logrus.Debugf("Swept %d expired dedup records", removed)
	}
}

func eventRow(alertID uint, ev model.NormalizedEvent, fp model.Fingerprint) *model.EventRecord {
	return &model.EventRecord{
		AlertID:        alertID,
		Device:         ev.Device,
		EventType:      ev.EventType,
		DetectionName:  ev.DetectionName,
		ObjectPath:     ev.ObjectPath,
		Result:         ev.Result,
		ProcessName:    ev.ProcessName,
		SHA256:         ev.SHA256,
		UserName:       ev.UserName,
		VendorSeverity: ev.VendorSeverity,
		DetectedAt:     ev.DetectedAt,
		Fingerprint:    string(fp),
		Valid:          ev.Valid,
		Reason:         string(ev.Reason),
	}
}
