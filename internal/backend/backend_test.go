package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	data := []byte(`{
		"blocked": [
			{"domain": "example.com", "patternType": "domain", "metadata": {"category": "ads", "rank": 2}},
			{"domain": "example.org/path", "patternType": "host_path_prefix"}
		],
		"broken": {"domain": "x.com"},
		"mixed": [42, {"domain": "ok.com", "patternType": "domain"}]
	}`)

	p, err := DecodePayload(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"blocked", "mixed"}, p.Names())
	require.Len(t, p.Lists["blocked"], 2)

	first := p.Lists["blocked"][0]
	assert.Equal(t, "example.com", first.Pattern)
	assert.Equal(t, "domain", first.PatternType)
	require.NotNil(t, first.Metadata)
	assert.Equal(t, "ads", first.Metadata.Category)
	_, ok := first.Metadata.Extra.Get("rank")
	assert.True(t, ok)

	assert.Nil(t, p.Lists["blocked"][1].Metadata)

	require.Len(t, p.Lists["mixed"], 1)
	assert.Equal(t, "ok.com", p.Lists["mixed"][0].Pattern)

	assert.Len(t, p.Warnings, 2)
}

func TestDecodePayload_Malformed(t *testing.T) {
	for _, in := range []string{`not json`, `[1,2]`, `null`, `"s"`} {
		_, err := DecodePayload([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedPayload, in)
	}
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"l":[{"domain":"a.com","patternType":"domain"}]}`), 0o644))

	p, err := NewFileFetcher(path).FetchPayload(context.Background())
	require.NoError(t, err)
	assert.Len(t, p.Lists["l"], 1)

	_, err = NewFileFetcher(filepath.Join(t.TempDir(), "missing.json")).FetchPayload(context.Background())
	assert.ErrorIs(t, err, ErrTransport)

	_, err = NewFileFetcher("").FetchPayload(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

type fakeFetcher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeFetcher) FetchPayload(ctx context.Context) (*Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Payload{Lists: map[string][]Candidate{}}, nil
}

type fakeReconciler struct {
	calls chan struct{}
	err   error
}

func (r *fakeReconciler) Reconcile(ctx context.Context, p *Payload) error {
	if r.calls != nil {
		r.calls <- struct{}{}
	}
	return r.err
}

func TestSyncer_SyncOnceUpdatesStatus(t *testing.T) {
	f := &fakeFetcher{}
	s := NewSyncer(SyncerConfig{}, f, &fakeReconciler{}, nil)

	require.NoError(t, s.SyncOnce(context.Background()))
	st := s.Status()
	assert.False(t, st.LastSuccess.IsZero())
	assert.Empty(t, st.LastError)

	f.err = errors.New("boom")
	require.Error(t, s.SyncOnce(context.Background()))
	st = s.Status()
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.Contains(t, st.LastError, "boom")
}

func TestSyncer_ReconcileErrorPropagates(t *testing.T) {
	s := NewSyncer(SyncerConfig{}, &fakeFetcher{}, &fakeReconciler{err: errors.New("store down")}, nil)
	err := s.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestSyncer_RunSyncsOnStartAndTrigger(t *testing.T) {
	rec := &fakeReconciler{calls: make(chan struct{}, 4)}
	s := NewSyncer(SyncerConfig{}, &fakeFetcher{}, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitCall(t, rec.calls)
	assert.True(t, s.Trigger())
	waitCall(t, rec.calls)

	s.Stop()
	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestSyncer_RunStopsOnContextCancel(t *testing.T) {
	s := NewSyncer(SyncerConfig{Interval: time.Hour}, &fakeFetcher{}, &fakeReconciler{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSyncer_TriggerDoesNotBlock(t *testing.T) {
	s := NewSyncer(SyncerConfig{}, &fakeFetcher{}, &fakeReconciler{}, nil)
	assert.True(t, s.Trigger())
	assert.False(t, s.Trigger(), "second request coalesces with the pending one")
}

func TestCalcBackoff(t *testing.T) {
	initial := time.Second
	maxDelay := 10 * time.Second

	for failures := 1; failures <= 10; failures++ {
		want := time.Duration(float64(initial) * float64(int(1)<<(failures-1)))
		if want > maxDelay {
			want = maxDelay
		}
		got := calcBackoff(initial, maxDelay, failures)
		assert.GreaterOrEqual(t, got, time.Duration(0.8*float64(want)), "failures=%d", failures)
		assert.LessOrEqual(t, got, time.Duration(1.2*float64(want)), "failures=%d", failures)
	}
}

func waitCall(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile was not called")
	}
}
