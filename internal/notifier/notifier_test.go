package notifier

import (
	"context"
	"errors"
	"net/textproto"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipmentportal/internal/mailer"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/circuitbreaker"
	"shipmentportal/pkg/util"
)

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type memMilestone struct {
	model.MilestoneNotification
	status model.MilestoneStatus
	sent   bool
	dead   bool
}

type memException struct {
	model.ExceptionAlert
	status model.ExceptionStatus
}

// memStore mirrors the eligibility rules of the SQL store.
type memStore struct {
	mu         sync.Mutex
	milestones []*memMilestone
	exceptions []*memException
	summary    model.DailySummary

	summaryStart, summaryEnd time.Time
	summaryLimit             int
	deadLettered             []int64
}

func (m *memStore) PendingMilestones(_ context.Context, since, now time.Time) ([]model.MilestoneNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MilestoneNotification
	for _, ms := range m.milestones {
		if ms.sent || ms.dead || ms.status != model.MilestoneCompleted {
			continue
		}
		if ms.DueForDelivery(since, now) {
			out = append(out, ms.MilestoneNotification)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActualDate.After(out[j].ActualDate) })
	return out, nil
}

func (m *memStore) find(id int64) *memMilestone {
	for _, ms := range m.milestones {
		if ms.MilestoneID == id {
			return ms
		}
	}
	return nil
}

func (m *memStore) MarkMilestoneNotified(_ context.Context, n model.MilestoneNotification, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := m.find(n.MilestoneID)
	if ms == nil || ms.sent {
		return false, nil
	}
	ms.sent = true
	ms.Attempts++
	ms.NextAttemptAt = nil
	return true, nil
}

func (m *memStore) RecordMilestoneFailure(_ context.Context, n model.MilestoneNotification, f model.DeliveryFailure, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := m.find(n.MilestoneID)
	ms.Attempts = f.Attempts
	ms.NextAttemptAt = f.NextAttemptAt
	ms.LastError = &f.Error
	ms.dead = f.Dead
	if f.Dead {
		m.deadLettered = append(m.deadLettered, n.MilestoneID)
	}
	return nil
}

func (m *memStore) RecentOpenExceptions(_ context.Context, since time.Time) ([]model.ExceptionAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExceptionAlert
	for _, e := range m.exceptions {
		if e.status == model.ExceptionOpen && e.CreatedAt.After(since) {
			out = append(out, e.ExceptionAlert)
		}
	}
	return out, nil
}

func (m *memStore) DailySummary(_ context.Context, start, end time.Time, limit int) (*model.DailySummary, error) {
	m.summaryStart, m.summaryEnd, m.summaryLimit = start, end, limit
	s := m.summary
	s.Day = start
	return &s, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []mailer.Message
	calls int
	errs  []error
	err   error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	} else {
		err = f.err
	}
	if err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func strPtr(s string) *string { return &s }

var testRecipients = []string{"ops@vhc.com", "planning@vhc.com"}

func newTestService(store Store, sender Sender, clk *clock, opts ...Option) *Service {
	cfg := Config{
		Recipients:           testRecipients,
		EscalationRecipients: []string{"director@vhc.com", "ops@vhc.com"},
	}
	return NewService(store, sender, cfg, nil, append([]Option{WithClock(clk.Now)}, opts...)...)
}

func completedMilestone(id int64, name string, at time.Time) *memMilestone {
	return &memMilestone{
		MilestoneNotification: model.MilestoneNotification{
			MilestoneID:   id,
			ShipmentID:    100 + id,
			MilestoneName: name,
			ActualDate:    at,
			BookingNumber: "BK1001",
		},
		status: model.MilestoneCompleted,
	}
}

func TestCheckMilestonesSendsVesselDeparted(t *testing.T) {
	clk := &clock{t: baseTime}
	ms := completedMilestone(1, "VESSEL_DEPARTED", baseTime.Add(-5*time.Minute))
	ms.VesselName = strPtr("MSC Aurora")
	ms.Location = strPtr("Shanghai")
	store := &memStore{milestones: []*memMilestone{ms}}
	sender := &fakeSender{}

	stats, err := newTestService(store, sender, clk).CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunStats{Found: 1, Sent: 1}, stats)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Milestone Update: Vessel Departed - BK1001", msg.Subject)
	assert.Equal(t, testRecipients, msg.To)
	assert.Contains(t, msg.HTML, "BK1001")
	assert.Contains(t, msg.HTML, "Pending")
	assert.Contains(t, msg.HTML, "MSC Aurora")
	assert.Contains(t, msg.HTML, "2025-06-01 09:55 UTC")
	assert.Contains(t, msg.HTML, "Shanghai")
	assert.NotContains(t, msg.HTML, "Notes:")
	assert.Contains(t, msg.HTML, DefaultPortalURL)

	assert.True(t, ms.sent)
}

func TestCheckMilestonesIsIdempotent(t *testing.T) {
	clk := &clock{t: baseTime}
	store := &memStore{milestones: []*memMilestone{
		completedMilestone(1, "VESSEL_DEPARTED", baseTime.Add(-2*time.Minute)),
		completedMilestone(2, "ARRIVED_AT_POD", baseTime.Add(-1*time.Minute)),
	}}
	sender := &fakeSender{}
	svc := newTestService(store, sender, clk)

	_, err := svc.CheckMilestones(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Milestone Update: Arrived At Pod - BK1001", sender.sent[0].Subject)

	stats, err := svc.CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Found)
	assert.Len(t, sender.sent, 2)
}

func TestCheckMilestonesIgnoresRowsOutsideWindow(t *testing.T) {
	clk := &clock{t: baseTime}
	pending := completedMilestone(1, "PICKED_UP", baseTime.Add(-20*time.Minute))
	notCompleted := completedMilestone(2, "PICKED_UP", baseTime.Add(-time.Minute))
	notCompleted.status = model.MilestonePending
	store := &memStore{milestones: []*memMilestone{pending, notCompleted}}
	sender := &fakeSender{}

	stats, err := newTestService(store, sender, clk).CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Found)
	assert.Empty(t, sender.sent)
}

func TestCheckMilestonesFailureIsNotMarked(t *testing.T) {
	clk := &clock{t: baseTime}
	ms := completedMilestone(1, "CUSTOMS_RELEASED", baseTime.Add(-time.Minute))
	store := &memStore{milestones: []*memMilestone{ms}}
	sender := &fakeSender{errs: []error{&textproto.Error{Code: 421, Msg: "try later"}}}
	svc := newTestService(store, sender, clk)

	stats, err := svc.CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.False(t, ms.sent)
	assert.Equal(t, 1, ms.Attempts)
	require.NotNil(t, ms.NextAttemptAt)
	assert.Equal(t, baseTime.Add(time.Minute), *ms.NextAttemptAt)
	require.NotNil(t, ms.LastError)

	// Not due yet.
	stats, err = svc.CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Found)

	// Retry is due even though the row has left the window.
	clk.Advance(20 * time.Minute)
	stats, err = svc.CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.True(t, ms.sent)
	assert.Equal(t, 2, ms.Attempts)
}

func TestCheckMilestonesDeadLettersAfterMaxAttempts(t *testing.T) {
	clk := &clock{t: baseTime}
	ms := completedMilestone(1, "VESSEL_DEPARTED", baseTime.Add(-time.Minute))
	store := &memStore{milestones: []*memMilestone{ms}}
	sender := &fakeSender{err: &textproto.Error{Code: 451, Msg: "local error"}}
	svc := newTestService(store, sender, clk)

	wantBackoff := []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 8 * time.Minute}
	for i, want := range wantBackoff {
		_, err := svc.CheckMilestones(context.Background())
		require.NoError(t, err)
		require.NotNil(t, ms.NextAttemptAt, "attempt %d", i+1)
		assert.Equal(t, clk.Now().Add(want), *ms.NextAttemptAt)
		clk.Advance(want)
	}

	stats, err := svc.CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeadLettered)
	assert.True(t, ms.dead)
	assert.Equal(t, 5, ms.Attempts)
	assert.Equal(t, []int64{1}, store.deadLettered)

	clk.Advance(time.Hour)
	stats, err = svc.CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Found)
	assert.Equal(t, 5, sender.calls)
}

func TestCheckMilestonesPermanentErrorDeadLettersImmediately(t *testing.T) {
	clk := &clock{t: baseTime}
	ms := completedMilestone(1, "VESSEL_DEPARTED", baseTime.Add(-time.Minute))
	store := &memStore{milestones: []*memMilestone{ms}}
	sender := &fakeSender{err: &textproto.Error{Code: 550, Msg: "mailbox unavailable"}}

	stats, err := newTestService(store, sender, clk).CheckMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeadLettered)
	assert.True(t, ms.dead)
	assert.Equal(t, 1, ms.Attempts)
	assert.Nil(t, ms.NextAttemptAt)
}

func TestCheckMilestonesStopsWhenRelayUnavailable(t *testing.T) {
	clk := &clock{t: baseTime}
	first := completedMilestone(1, "VESSEL_DEPARTED", baseTime.Add(-time.Minute))
	second := completedMilestone(2, "ARRIVED_AT_POD", baseTime.Add(-2*time.Minute))
	store := &memStore{milestones: []*memMilestone{first, second}}
	sender := &fakeSender{err: circuitbreaker.ErrCircuitBreakerOpen}

	_, err := newTestService(store, sender, clk).CheckMilestones(context.Background())
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)

	assert.Equal(t, 1, sender.calls)
	for _, ms := range []*memMilestone{first, second} {
		assert.Zero(t, ms.Attempts)
		assert.Nil(t, ms.NextAttemptAt)
		assert.False(t, ms.sent)
		assert.False(t, ms.dead)
	}
}

func TestJobsRequireRecipients(t *testing.T) {
	clk := &clock{t: baseTime}
	svc := NewService(&memStore{}, &fakeSender{}, Config{}, nil, WithClock(clk.Now))

	_, err := svc.CheckMilestones(context.Background())
	assert.ErrorIs(t, err, ErrNoRecipients)
	_, err = svc.CheckExceptions(context.Background())
	assert.ErrorIs(t, err, ErrNoRecipients)
	_, err = svc.SendDailySummary(context.Background())
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func openException(id int64, sev model.Severity, at time.Time) *memException {
	return &memException{
		ExceptionAlert: model.ExceptionAlert{
			ExceptionID:   id,
			ShipmentID:    200 + id,
			Severity:      sev,
			Title:         "Container held at port",
			BookingNumber: "BK2002",
			CreatedAt:     at,
		},
		status: model.ExceptionOpen,
	}
}

func TestCheckExceptionsRoutesBySeverity(t *testing.T) {
	clk := &clock{t: baseTime}
	critical := openException(1, model.SeverityCritical, baseTime.Add(-time.Minute))
	low := openException(2, model.SeverityLow, baseTime.Add(-2*time.Minute))
	low.Description = strPtr("Paperwork typo")
	resolved := openException(3, model.SeverityHigh, baseTime.Add(-time.Minute))
	resolved.status = model.ExceptionResolved
	store := &memStore{exceptions: []*memException{critical, low, resolved}}
	sender := &fakeSender{}

	stats, err := newTestService(store, sender, clk).CheckExceptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)
	require.Len(t, sender.sent, 2)

	crit := sender.sent[0]
	assert.Equal(t, "Exception Alert [CRITICAL]: Container held at port - BK2002", crit.Subject)
	assert.Equal(t, []string{"ops@vhc.com", "planning@vhc.com", "director@vhc.com"}, crit.To)
	assert.Contains(t, crit.HTML, "background-color: #dc2626")
	assert.Contains(t, crit.HTML, "No additional details provided")

	lowMsg := sender.sent[1]
	assert.Equal(t, testRecipients, lowMsg.To)
	assert.Contains(t, lowMsg.HTML, "background-color: #3b82f6")
	assert.Contains(t, lowMsg.HTML, "Paperwork typo")
}

func TestCheckExceptionsWithoutGuardResends(t *testing.T) {
	clk := &clock{t: baseTime}
	store := &memStore{exceptions: []*memException{openException(1, model.SeverityMedium, baseTime.Add(-time.Minute))}}
	sender := &fakeSender{}
	svc := newTestService(store, sender, clk)

	for i := 0; i < 2; i++ {
		_, err := svc.CheckExceptions(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, sender.sent, 2)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCheckExceptionsWithGuardSendsOnce(t *testing.T) {
	clk := &clock{t: baseTime}
	store := &memStore{exceptions: []*memException{openException(1, model.SeverityHigh, baseTime.Add(-time.Minute))}}
	sender := &fakeSender{}
	guard := util.NewDeduper(newRedis(t), 30*time.Minute, nil)
	svc := newTestService(store, sender, clk, WithAlertGuard(guard))

	_, err := svc.CheckExceptions(context.Background())
	require.NoError(t, err)
	stats, err := svc.CheckExceptions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Len(t, sender.sent, 1)
}

func TestCheckExceptionsReleasesGuardOnFailure(t *testing.T) {
	clk := &clock{t: baseTime}
	store := &memStore{exceptions: []*memException{openException(1, model.SeverityLow, baseTime.Add(-time.Minute))}}
	sender := &fakeSender{errs: []error{errors.New("connection reset")}}
	guard := util.NewDeduper(newRedis(t), 30*time.Minute, nil)
	svc := newTestService(store, sender, clk, WithAlertGuard(guard))

	stats, err := svc.CheckExceptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	stats, err = svc.CheckExceptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Len(t, sender.sent, 1)
}

func TestCheckExceptionsGivesUpAfterMaxFailures(t *testing.T) {
	clk := &clock{t: baseTime}
	store := &memStore{exceptions: []*memException{openException(7, model.SeverityLow, baseTime.Add(-time.Minute))}}
	sender := &fakeSender{err: errors.New("connection reset")}
	rdb := newRedis(t)
	svc := NewService(store, sender, Config{Recipients: testRecipients, MaxAttempts: 2}, nil,
		WithClock(clk.Now),
		WithAlertGuard(util.NewDeduper(rdb, 30*time.Minute, nil)),
		WithFailureCounter(util.NewRetryCounter(rdb, time.Hour)),
	)

	stats, err := svc.CheckExceptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	stats, err = svc.CheckExceptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeadLettered)

	stats, err = svc.CheckExceptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, sender.calls)
}

func TestSendDailySummary(t *testing.T) {
	clk := &clock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	store := &memStore{summary: model.DailySummary{
		ActiveShipments: 3,
		MilestonesToday: 2,
		OpenExceptions:  1,
		DocumentsToday:  0,
		RecentlyUpdated: []model.SummaryShipment{
			{BookingNumber: "BK1001", CurrentMilestone: "VESSEL_DEPARTED"},
			{BookingNumber: "BK1002", ContainerNumber: strPtr("MSCU1234567"), CurrentMilestone: ""},
		},
	}}
	sender := &fakeSender{}

	_, err := newTestService(store, sender, clk).SendDailySummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), store.summaryStart)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), store.summaryEnd)
	assert.Equal(t, 10, store.summaryLimit)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Daily Shipment Summary - 2025-06-01", msg.Subject)
	assert.Equal(t, testRecipients, msg.To)
	assert.Contains(t, msg.HTML, `id="active-shipments">3</div>`)
	assert.Contains(t, msg.HTML, `id="milestones-today">2</div>`)
	assert.Contains(t, msg.HTML, `id="open-exceptions">1</div>`)
	assert.Contains(t, msg.HTML, `id="documents-today">0</div>`)
	assert.Contains(t, msg.HTML, "<td>Pending</td>")
	assert.Contains(t, msg.HTML, "<td>MSCU1234567</td>")
	assert.Contains(t, msg.HTML, "<td>Vessel Departed</td>")
	assert.Contains(t, msg.HTML, "<td>N/A</td>")
	assert.Contains(t, msg.HTML, "June 01, 2025")
}

func TestSendDailySummaryReportsSendFailure(t *testing.T) {
	clk := &clock{t: baseTime}
	sender := &fakeSender{err: errors.New("relay down")}

	stats, err := newTestService(&memStore{}, sender, clk).SendDailySummary(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, stats.Failed)
}
