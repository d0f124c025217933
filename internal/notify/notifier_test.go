package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name   string
	err    error
	titles []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyRespectsFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventHighRisk}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventSnipePlanned, "filtered", "body"))
	assert.Empty(t, s.titles)

	require.NoError(t, n.Notify(context.Background(), EventHighRisk, "delivered", "body"))
	assert.Equal(t, []string{"delivered"}, s.titles)
}

func TestNotifyEmptyFilterAllowsEverything(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventArchiveDone, "a", "b"))
	assert.Len(t, s.titles, 1)
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventHighRisk}, testLogger())

	require.NoError(t, n.NotifyAll(context.Background(), "urgent", "b"))
	assert.Equal(t, []string{"urgent"}, s.titles)
}

func TestDispatchContinuesPastFailures(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), EventHighRisk, "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, []string{"t"}, good.titles, "the healthy sender still delivered")
}

func TestNotifyWithoutSenders(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	require.NoError(t, n.Notify(context.Background(), EventHighRisk, "t", "b"))
}
