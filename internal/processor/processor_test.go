package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-alert-relay-go/internal/dedup"
	"soc-alert-relay-go/internal/dedup/memstore"
	"soc-alert-relay-go/internal/enrich"
	"soc-alert-relay-go/internal/fetcher"
	"soc-alert-relay-go/internal/metrics"
	"soc-alert-relay-go/internal/model"
	"soc-alert-relay-go/internal/notify"
)

// The default Prometheus registry rejects duplicate collectors, so every
// test shares one Metrics instance.
var testMetrics = metrics.NewMetrics()

type stubFetcher struct {
	emails   []fetcher.InboundEmail
	fetchErr error
	marked   []string
}

func (s *stubFetcher) FetchNew(ctx context.Context, limit int) ([]fetcher.InboundEmail, error) {
	return s.emails, s.fetchErr
}

func (s *stubFetcher) MarkProcessed(ctx context.Context, ids []string) error {
	s.marked = append(s.marked, ids...)
	return nil
}

func (s *stubFetcher) Close() error { return nil }

type stubAudit struct {
	seen       map[string]bool
	seenErr    error
	alerts     []*model.Alert
	events     []*model.EventRecord
	processed  []uint
	dispatches []*model.Dispatch
	nextID     uint
}

func (s *stubAudit) SeenAlert(messageUID string) (bool, error) {
	return s.seen[messageUID], s.seenErr
}

func (s *stubAudit) SaveAlert(alert *model.Alert) error {
	s.nextID++
	alert.ID = s.nextID
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *stubAudit) SaveEvent(event *model.EventRecord) error {
	event.ID = 100 + event.AlertID
	s.events = append(s.events, event)
	return nil
}

func (s *stubAudit) MarkAlertProcessed(alertID uint) error {
	s.processed = append(s.processed, alertID)
	return nil
}

func (s *stubAudit) LogDispatch(dispatch *model.Dispatch) error {
	s.dispatches = append(s.dispatches, dispatch)
	return nil
}

type stubRegistry struct {
	classes map[string]model.AssetClass
	ensured []string
}

func (s *stubRegistry) Classify(ctx context.Context, device string) (model.AssetClassification, error) {
	if c, ok := s.classes[device]; ok {
		return model.AssetClassification{Device: device, Class: c}, nil
	}
	return model.Unclassified(device), nil
}

func (s *stubRegistry) Ensure(ctx context.Context, device string) error {
	s.ensured = append(s.ensured, device)
	return nil
}

type stubNotifier struct {
	dispatches []notify.Dispatch
	deliveries []notify.Delivery
	err        error
}

func (s *stubNotifier) Send(ctx context.Context, d notify.Dispatch) ([]notify.Delivery, error) {
	s.dispatches = append(s.dispatches, d)
	return s.deliveries, s.err
}

type stubNarrator struct {
	text  string
	err   error
	calls int
}

func (s *stubNarrator) Narrate(ctx context.Context, ev model.NormalizedEvent, cls model.AssetClassification, a enrich.Assessment, repeats int) (string, error) {
	s.calls++
	return s.text, s.err
}

type failingStore struct{}

func (failingStore) Mutate(ctx context.Context, fp model.Fingerprint, fn func(*dedup.Record) (*dedup.Record, error)) (*dedup.Record, error) {
	return nil, errors.New("store down")
}

func (failingStore) Get(ctx context.Context, fp model.Fingerprint) (*dedup.Record, bool, error) {
	return nil, false, errors.New("store down")
}

type stubSweeper struct {
	cutoff time.Time
	calls  int
}

func (s *stubSweeper) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.calls++
	s.cutoff = cutoff
	return 2, nil
}

func alertEmail(id, device string) fetcher.InboundEmail {
	body := "Computer: " + device + "\n" +
		"Тип события: Обнаружен вредоносный объект\n" +
		"Название: EICAR-Test-File\n" +
		"Результат: Обнаружено\n"
	return fetcher.InboundEmail{
		ID:      id,
		Subject: "KSC notification",
		From:    "ksc@corp.example",
		Raw: model.RawMessage{
			Content:     body,
			ContentType: model.ContentTypePlain,
			ReceivedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func newTestProcessor(t *testing.T, store dedup.Store, f *stubFetcher, n *stubNotifier, narrator enrich.Narrator) (*Processor, *stubAudit, *stubRegistry) {
	t.Helper()

	engine, err := dedup.NewEngine(store, 10*time.Minute, 3)
	require.NoError(t, err)

	audit := &stubAudit{seen: map[string]bool{}}
	registry := &stubRegistry{classes: map[string]model.AssetClass{}}
	p := New(Params{
		Fetcher:    f,
		Engine:     engine,
		Audit:      audit,
		Assets:     registry,
		Narrator:   narrator,
		Notifier:   n,
		Metrics:    testMetrics,
		FetchLimit: 50,
	})
	return p, audit, registry
}

func TestProcessCycleDeliversNewAlert(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{alertEmail("msg-1", "SRV-DC01")}}
	n := &stubNotifier{deliveries: []notify.Delivery{{ChatID: 100}}}
	p, audit, registry := newTestProcessor(t, memstore.New(), f, n, nil)

	stats, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 0, stats.Failures)

	require.Len(t, n.dispatches, 1)
	d := n.dispatches[0]
	assert.Equal(t, model.DecisionDeliver, d.Decision)
	assert.Equal(t, 1, d.RepeatCount)
	assert.Equal(t, "SRV-DC01", d.Event.Device)
	assert.NotEmpty(t, d.Fingerprint)

	require.Len(t, audit.alerts, 1)
	assert.True(t, audit.alerts[0].ParseValid)
	assert.Equal(t, "msg-1", audit.alerts[0].MessageUID)

	require.Len(t, audit.events, 1)
	assert.Equal(t, string(d.Fingerprint), audit.events[0].Fingerprint)

	assert.Equal(t, []uint{1}, audit.processed)
	assert.Equal(t, []string{"msg-1"}, f.marked)
	assert.Equal(t, []string{"SRV-DC01"}, registry.ensured)

	require.Len(t, audit.dispatches, 1)
	assert.Equal(t, "sent", audit.dispatches[0].Status)
	assert.Equal(t, int64(100), audit.dispatches[0].ChatID)
}

func TestProcessCycleWindowLifecycle(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{
		alertEmail("msg-1", "SRV-DC01"),
		alertEmail("msg-2", "SRV-DC01"),
		alertEmail("msg-3", "SRV-DC01"),
		alertEmail("msg-4", "SRV-DC01"),
	}}
	n := &stubNotifier{deliveries: []notify.Delivery{{ChatID: 100}}}
	p, audit, _ := newTestProcessor(t, memstore.New(), f, n, nil)

	stats, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, stats.Bursts)
	assert.Equal(t, 2, stats.Suppressed)

	// Only the window opener and the threshold burst reach the notifier.
	require.Len(t, n.dispatches, 2)
	assert.Equal(t, model.DecisionDeliver, n.dispatches[0].Decision)
	assert.Equal(t, 1, n.dispatches[0].RepeatCount)
	assert.Equal(t, model.DecisionBurst, n.dispatches[1].Decision)
	assert.Equal(t, 3, n.dispatches[1].RepeatCount)

	assert.Len(t, audit.processed, 4)
	assert.Len(t, f.marked, 4)
}

func TestProcessCycleSkipsAlreadyProcessed(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{alertEmail("msg-1", "SRV-DC01")}}
	n := &stubNotifier{deliveries: []notify.Delivery{{ChatID: 100}}}
	p, audit, _ := newTestProcessor(t, memstore.New(), f, n, nil)
	audit.seen["msg-1"] = true

	stats, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, n.dispatches)
	assert.Empty(t, audit.alerts)
	// Still acked in the mailbox so it stops coming back.
	assert.Equal(t, []string{"msg-1"}, f.marked)
}

func TestProcessCycleAuditsInvalidMail(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{{
		ID:      "msg-1",
		Subject: "Weekly report",
		From:    "ksc@corp.example",
		Raw: model.RawMessage{
			Content:     "Scheduled scan finished without findings.",
			ContentType: model.ContentTypePlain,
			ReceivedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}}}
	n := &stubNotifier{}
	p, audit, registry := newTestProcessor(t, memstore.New(), f, n, nil)

	stats, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Invalid)
	assert.Empty(t, n.dispatches)
	assert.Empty(t, registry.ensured)

	require.Len(t, audit.alerts, 1)
	assert.False(t, audit.alerts[0].ParseValid)
	require.Len(t, audit.events, 1)
	assert.False(t, audit.events[0].Valid)
	assert.Empty(t, audit.events[0].Fingerprint)

	assert.Equal(t, []uint{1}, audit.processed)
	assert.Equal(t, []string{"msg-1"}, f.marked)
}

func TestProcessCycleDegradedStoreDelivers(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{alertEmail("msg-1", "SRV-DC01")}}
	n := &stubNotifier{deliveries: []notify.Delivery{{ChatID: 100}}}
	p, audit, _ := newTestProcessor(t, failingStore{}, f, n, nil)

	stats, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Delivered)
	require.Len(t, n.dispatches, 1)
	assert.Equal(t, model.DecisionDeliver, n.dispatches[0].Decision)
	assert.Equal(t, 1, n.dispatches[0].RepeatCount)
	assert.Equal(t, []uint{1}, audit.processed)
}

func TestProcessCycleRetriesFailedDispatch(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{alertEmail("msg-1", "SRV-DC01")}}
	n := &stubNotifier{
		deliveries: []notify.Delivery{{ChatID: 100, Err: errors.New("bad gateway")}},
		err:        errors.New("telegram send failed to all 1 chats"),
	}
	p, audit, _ := newTestProcessor(t, memstore.New(), f, n, nil)

	stats, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 0, stats.Delivered)

	// Unacked everywhere: next cycle fetches and re-decides it.
	assert.Empty(t, audit.processed)
	assert.Empty(t, f.marked)

	require.Len(t, audit.dispatches, 1)
	assert.Equal(t, "failed", audit.dispatches[0].Status)
	assert.Equal(t, "bad gateway", audit.dispatches[0].ErrorMsg)
}

func TestProcessCycleNarratorFallback(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{alertEmail("msg-1", "SRV-DC01")}}
	n := &stubNotifier{deliveries: []notify.Delivery{{ChatID: 100}}}
	narrator := &stubNarrator{err: errors.New("claude api error 529: overloaded")}
	p, audit, _ := newTestProcessor(t, memstore.New(), f, n, narrator)

	stats, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, narrator.calls)

	require.Len(t, n.dispatches, 1)
	assert.Contains(t, n.dispatches[0].Text, "SRV-DC01")
	assert.Contains(t, n.dispatches[0].Text, "LLM fallback: claude api error 529: overloaded")

	require.Len(t, audit.dispatches, 1)
	assert.False(t, audit.dispatches[0].Narrative)
}

func TestProcessCycleUsesNarration(t *testing.T) {
	f := &stubFetcher{emails: []fetcher.InboundEmail{alertEmail("msg-1", "SRV-DC01")}}
	n := &stubNotifier{deliveries: []notify.Delivery{{ChatID: 100}}}
	narrator := &stubNarrator{text: "🟡 | MEDIUM | analyst narration"}
	p, audit, _ := newTestProcessor(t, memstore.New(), f, n, narrator)

	_, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, n.dispatches, 1)
	assert.Equal(t, "🟡 | MEDIUM | analyst narration", n.dispatches[0].Text)

	require.Len(t, audit.dispatches, 1)
	assert.True(t, audit.dispatches[0].Narrative)
}

func TestProcessCycleSweepsExpiredRecords(t *testing.T) {
	f := &stubFetcher{}
	n := &stubNotifier{}
	p, _, _ := newTestProcessor(t, memstore.New(), f, n, nil)

	sweeper := &stubSweeper{}
	p.sweeper = sweeper
	arrival := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return arrival }

	_, err := p.ProcessCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, arrival.Add(-10*time.Minute), sweeper.cutoff)
}

func TestProcessCycleFetchFailure(t *testing.T) {
	f := &stubFetcher{fetchErr: errors.New("imap: connection reset")}
	p, _, _ := newTestProcessor(t, memstore.New(), f, &stubNotifier{}, nil)

	_, err := p.ProcessCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch mail")
}
