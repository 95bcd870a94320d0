// ABOUTME: In-memory fakes for every engine collaborator
// ABOUTME: Each fake records calls and can be told to fail
package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/retainiq/models"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

const alertRecipient = "am@retainiq.com"

type fakeCustomers struct {
	mu        sync.Mutex
	customers []models.Customer
	selectErr error
	// updateFailures is the number of UpdateRiskScore calls that fail before
	// one succeeds; negative means every call fails.
	updateFailures int
	updates        map[string]float64
	updateCalls    int
}

func (f *fakeCustomers) Select(ctx context.Context, tier models.Tier, filter models.CustomerFilter) ([]models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Customer
	for _, c := range f.customers {
		if c.Tier != tier {
			continue
		}
		if filter.StuckOnly && c.OnboardingStatus != models.OnboardingStuck {
			continue
		}
		if filter.UpsellReady && !c.UpsellReady {
			continue
		}
		if filter.MinChurnRisk != nil && c.ChurnRisk <= *filter.MinChurnRisk {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCustomers) UpdateRiskScore(_ context.Context, id string, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateFailures != 0 {
		if f.updateFailures > 0 {
			f.updateFailures--
		}
		return errors.New("database is locked")
	}
	if f.updates == nil {
		f.updates = map[string]float64{}
	}
	f.updates[id] = score
	return nil
}

type fakeScorer struct {
	predictions []models.Prediction
	err         error
	calls       int
}

func (f *fakeScorer) Score(_ context.Context, _ []models.Customer) ([]models.Prediction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.predictions, nil
}

// fakeGenerator answers by system prompt and fails any prompt that contains
// one of the failOn substrings.
type fakeGenerator struct {
	mu      sync.Mutex
	failOn  []string
	prompts []string
	systems []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, systemPrompt)
	f.mu.Unlock()

	for _, s := range f.failOn {
		if strings.Contains(prompt, s) {
			return "", errors.New("model overloaded")
		}
	}
	switch {
	case strings.Contains(systemPrompt, "churn analyst"):
		return `{"analysis":"Usage dropped sharply.","actions":["Call the sponsor","Offer training","Review contract"]}`, nil
	case strings.Contains(systemPrompt, "reporting analyst"):
		return "Two accounts need attention this week.", nil
	case strings.Contains(systemPrompt, "FAQ"):
		return "Open Settings and choose Export.", nil
	default:
		return `{"subject":"Checking in","body":"Hi there"}`, nil
	}
}

type sentEmail struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentEmail
	failTo map[string]error
	// delays lets a recipient's delivery take longer than others.
	delays   map[string]time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeNotifier) Send(ctx context.Context, to, subject, body string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if d := f.delays[to]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := f.failTo[to]; err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.to)
	}
	return out
}

type fakeScheduler struct {
	mu       sync.Mutex
	meetings []models.Meeting
	err      error
}

func (f *fakeScheduler) ScheduleMeeting(_ context.Context, m models.Meeting) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meetings = append(f.meetings, m)
	return "event-1", nil
}

type fakeReporter struct {
	ref    string
	err    error
	titles []string
	rows   [][]string
}

func (f *fakeReporter) CreateReport(_ context.Context, title string, rows [][]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.titles = append(f.titles, title)
	f.rows = rows
	return f.ref, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	logs   []models.AgentLog
	emails []models.EmailLog
	runs   []models.RunSummary
	faqs   []models.FAQQuery
	// failLogAction and failRecordRun count remaining failures; negative
	// means always fail.
	failLogAction int
	failRecordRun int
}

func consume(n *int) bool {
	if *n == 0 {
		return false
	}
	if *n > 0 {
		*n--
	}
	return true
}

func (f *fakeAudit) LogAction(_ context.Context, entry *models.AgentLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if consume(&f.failLogAction) {
		return errors.New("disk full")
	}
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeAudit) LogEmail(_ context.Context, entry *models.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, *entry)
	return nil
}

func (f *fakeAudit) RecordRun(ctx context.Context, summary *models.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if consume(&f.failRecordRun) {
		return errors.New("disk full")
	}
	f.runs = append(f.runs, *summary)
	return nil
}

func (f *fakeAudit) LogFAQ(_ context.Context, q *models.FAQQuery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faqs = append(f.faqs, *q)
	return nil
}

func (f *fakeAudit) actionTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.ActionType)
	}
	return out
}

type fakeSignals struct {
	mu      sync.Mutex
	signals []models.ChurnSignal
	err     error
	calls   int
}

func (f *fakeSignals) RecordSignal(_ context.Context, s *models.ChurnSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.signals = append(f.signals, *s)
	return nil
}

type fakeEvents struct {
	mu      sync.Mutex
	audits  []models.AgentLog
	signals []models.ChurnSignal
}

func (f *fakeEvents) PublishAudit(_ context.Context, entry models.AgentLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeEvents) PublishSignal(_ context.Context, signal models.ChurnSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signal)
	return nil
}

type harness struct {
	customers *fakeCustomers
	scorer    *fakeScorer
	gen       *fakeGenerator
	notifier  *fakeNotifier
	scheduler *fakeScheduler
	reporter  *fakeReporter
	audit     *fakeAudit
	signals   *fakeSignals
	events    *fakeEvents
	engine    *Engine
}

func newHarness(t *testing.T, customers []models.Customer, tune ...func(*harness, *Options)) *harness {
	t.Helper()

	h := &harness{
		customers: &fakeCustomers{customers: customers},
		scorer:    &fakeScorer{},
		gen:       &fakeGenerator{},
		notifier:  &fakeNotifier{},
		scheduler: &fakeScheduler{},
		reporter:  &fakeReporter{ref: "https://docs.google.com/spreadsheets/d/sheet-1"},
		audit:     &fakeAudit{},
		signals:   &fakeSignals{},
		events:    &fakeEvents{},
	}

	opts := DefaultOptions()
	opts.AlertRecipient = alertRecipient
	for _, fn := range tune {
		fn(h, &opts)
	}

	engine, err := NewEngine(Deps{
		Customers: h.customers,
		Scorer:    h.scorer,
		Generator: h.gen,
		Notifier:  h.notifier,
		Scheduler: h.scheduler,
		Reporter:  h.reporter,
		Audit:     h.audit,
		Signals:   h.signals,
		Events:    h.events,
		Now:       func() time.Time { return testNow },
	}, opts)
	require.NoError(t, err)
	h.engine = engine
	return h
}

func day(n int) *int { return &n }

func entryCustomer(id, name, status string, onboardingDay int) models.Customer {
	return models.Customer{
		ID:               id,
		Name:             name,
		Email:            strings.ToLower(name) + "@example.com",
		Company:          name + " Co",
		Tier:             models.TierEntry,
		HealthScore:      40,
		FeaturesUsed:     2,
		TotalFeatures:    10,
		OnboardingStatus: status,
		OnboardingDay:    day(onboardingDay),
	}
}

func midCustomer(id, name string, churnRisk float64, upsell bool) models.Customer {
	c := models.Customer{
		ID:          id,
		Name:        name,
		Email:       strings.ToLower(name) + "@example.com",
		Company:     name + " Inc",
		Tier:        models.TierMid,
		HealthScore: 60,
		ChurnRisk:   churnRisk,
		UpsellReady: upsell,
	}
	if upsell {
		c.UpsellValue = 24000
	}
	return c
}

func topCustomer(id, company string, staleRisk float64) models.Customer {
	return models.Customer{
		ID:          id,
		Name:        company + " Sponsor",
		Email:       "sponsor@" + strings.ToLower(company) + ".com",
		Company:     company,
		Tier:        models.TierTop,
		HealthScore: 70,
		ChurnRisk:   staleRisk,
		ARR:         250000,
	}
}
