package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipmentportal/internal/worker"
)

type fakeBackend struct {
	calls  []string
	admin  [4]string
	job    string
	event  int64
	limit  int
	ms     int64
	err    error
	closed bool
}

func (f *fakeBackend) CreateAdmin(_ context.Context, email, password, fullName, team string) (int64, error) {
	f.calls = append(f.calls, "create-admin")
	f.admin = [4]string{email, password, fullName, team}
	return 7, f.err
}

func (f *fakeBackend) RunJob(_ context.Context, job string) error {
	f.calls = append(f.calls, "run-job")
	f.job = job
	return f.err
}

func (f *fakeBackend) ReplayEvent(_ context.Context, id int64) error {
	f.calls = append(f.calls, "replay")
	f.event = id
	return f.err
}

func (f *fakeBackend) ReplayFailed(_ context.Context, limit int) (int, error) {
	f.calls = append(f.calls, "replay-failed")
	f.limit = limit
	return 3, f.err
}

func (f *fakeBackend) RequeueMilestone(_ context.Context, id int64) error {
	f.calls = append(f.calls, "requeue")
	f.ms = id
	return f.err
}

func (f *fakeBackend) Close() { f.closed = true }

func run(t *testing.T, b *fakeBackend, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context) (Backend, error) { return b, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreateAdmin(t *testing.T) {
	b := &fakeBackend{}
	out, err := run(t, b, "create-admin", "--email", "ops@seair.com", "--password", "pw", "--full-name", "Ops", "--team", "Seair")
	require.NoError(t, err)
	assert.Equal(t, [4]string{"ops@seair.com", "pw", "Ops", "Seair"}, b.admin)
	assert.Contains(t, out, "user_id 7")
	assert.True(t, b.closed)
}

func TestCreateAdminRequiresFlags(t *testing.T) {
	b := &fakeBackend{}
	_, err := run(t, b, "create-admin", "--email", "ops@seair.com")
	require.Error(t, err)
	assert.Empty(t, b.calls)
}

func TestRunJobMapsNames(t *testing.T) {
	cases := map[string]string{
		"milestones":    worker.JobCheckMilestones,
		"exceptions":    worker.JobCheckExceptions,
		"daily-summary": worker.JobDailySummary,
	}
	for arg, want := range cases {
		t.Run(arg, func(t *testing.T) {
			b := &fakeBackend{}
			_, err := run(t, b, "run-job", arg)
			require.NoError(t, err)
			assert.Equal(t, want, b.job)
		})
	}
}

func TestRunJobRejectsUnknown(t *testing.T) {
	b := &fakeBackend{}
	_, err := run(t, b, "run-job", "invoices")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
	assert.Empty(t, b.calls)
}

func TestOutboxCommands(t *testing.T) {
	b := &fakeBackend{}
	_, err := run(t, b, "outbox", "replay", "--id", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), b.event)

	out, err := run(t, b, "outbox", "replay-failed", "--limit", "10")
	require.NoError(t, err)
	assert.Equal(t, 10, b.limit)
	assert.Contains(t, out, "replayed 3 failed events")

	_, err = run(t, b, "outbox", "replay-failed", "--limit", "0")
	require.Error(t, err)
}

func TestNotificationsRequeue(t *testing.T) {
	b := &fakeBackend{}
	out, err := run(t, b, "notifications", "requeue", "--milestone-id", "5")
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.ms)
	assert.Contains(t, out, "requeued milestone 5")
}

func TestBackendErrorsPropagate(t *testing.T) {
	b := &fakeBackend{err: errors.New("boom")}
	_, err := run(t, b, "notifications", "requeue", "--milestone-id", "5")
	require.ErrorContains(t, err, "boom")
	assert.True(t, b.closed)
}

func TestOpenFailure(t *testing.T) {
	cmd := NewRootCommand(func(context.Context) (Backend, error) { return nil, errors.New("no db") })
	cmd.SetArgs([]string{"run-job", "milestones"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.ErrorContains(t, err, "connect: no db")
}
