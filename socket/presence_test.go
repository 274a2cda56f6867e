package socket

import (
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/require"
)

func TestPresenceStaysOnlineWhileAnyConnectionOpen(t *testing.T) {
	clk := newClock(t0)
	p := NewPresenceRegistry(clk.Now)

	require.True(t, p.Connect("alice", "c1"))
	require.False(t, p.Connect("alice", "c2"), "second tab is not a new arrival")
	require.True(t, p.IsOnline("alice"))

	clk.Advance(time.Minute)
	require.False(t, p.Disconnect("alice", "c1"))
	require.True(t, p.IsOnline("alice"))

	clk.Advance(time.Minute)
	require.True(t, p.Disconnect("alice", "c2"))
	require.False(t, p.IsOnline("alice"))

	seen, ok := p.LastSeen("alice")
	require.True(t, ok)
	require.Equal(t, t0.Add(2*time.Minute), seen)
}

func TestPresenceDisconnectUnknownActor(t *testing.T) {
	p := NewPresenceRegistry(nil)
	require.False(t, p.Disconnect("ghost", "c1"))
	_, ok := p.Record("ghost")
	require.False(t, ok)
}

func TestPresenceOnlineActorsSorted(t *testing.T) {
	p := NewPresenceRegistry(nil)
	p.Connect("carol", "c3")
	p.Connect("alice", "c1")
	p.Connect("bob", "c2")
	p.Disconnect("bob", "c2")

	require.Equal(t, []string{"alice", "carol"}, p.OnlineActors())
}

func TestPresenceSweepDropsOnlyStaleOffline(t *testing.T) {
	clk := newClock(t0)
	p := NewPresenceRegistry(clk.Now)

	p.Connect("old", "c1")
	p.Disconnect("old", "c1")
	clk.Advance(20 * time.Minute)
	p.Connect("recent", "c2")
	p.Disconnect("recent", "c2")
	p.Connect("online", "c3")
	clk.Advance(20 * time.Minute)

	removed := p.Sweep(30 * time.Minute)
	require.Equal(t, []string{"old"}, removed)
	require.Equal(t, 2, p.Len())
	require.True(t, p.IsOnline("online"))

	rec, ok := p.Record("recent")
	require.True(t, ok)
	require.False(t, rec.Online)
}

func TestSchedulePresenceSweep(t *testing.T) {
	clk := newClock(t0)
	p := NewPresenceRegistry(clk.Now)
	p.Connect("old", "c1")
	p.Disconnect("old", "c1")
	clk.Advance(time.Hour)

	s, err := gocron.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	job, err := SchedulePresenceSweep(s, p, 10*time.Millisecond, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "presence_sweep", job.Name())

	s.Start()
	require.Eventually(t, func() bool { return p.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
