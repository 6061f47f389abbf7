package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

// ---------- test doubles ----------

var canonical = time.FixedZone("UTC+8", 8*3600)

type fakeStore struct {
	mu        sync.Mutex
	recs      []domain.RequestRecord
	findErr   error
	latestErr error
	insertErr error
	scanErr   error
	inserts   int
}

func (f *fakeStore) add(userID, key, answer string, at time.Time, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, domain.RequestRecord{
		ID:           fmt.Sprintf("r%d", len(f.recs)+1),
		UserID:       userID,
		Username:     "name-" + userID,
		Question:     key,
		AIResponse:   answer,
		Timestamp:    domain.FormatTimestamp(at),
		DailyLimit:   20,
		CurrentCount: count,
	})
}

func (f *fakeStore) Insert(_ context.Context, rec *domain.RequestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	rec.ID = fmt.Sprintf("r%d", len(f.recs)+1)
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakeStore) newest(match func(domain.RequestRecord) bool) (*domain.RequestRecord, error) {
	var best *domain.RequestRecord
	for i := range f.recs {
		r := f.recs[i]
		if !match(r) {
			continue
		}
		if best == nil || r.Timestamp >= best.Timestamp {
			best = &r
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) FindByKey(_ context.Context, key string) (*domain.RequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.newest(func(r domain.RequestRecord) bool { return r.Question == key })
}

func (f *fakeStore) FindLatestByUser(_ context.Context, userID string) (*domain.RequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.newest(func(r domain.RequestRecord) bool { return r.UserID == userID })
}

func (f *fakeStore) FindLatest(_ context.Context) (*domain.RequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.newest(func(domain.RequestRecord) bool { return true })
}

func (f *fakeStore) ScanAll(_ context.Context) ([]domain.RequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := make([]domain.RequestRecord, len(f.recs))
	copy(out, f.recs)
	return out, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

type fakeChannel struct {
	mu      sync.Mutex
	sent    []string
	failOn  map[int]error // 0-based send index -> error
	typing  int
	stopped int
}

func (c *fakeChannel) Send(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.sent)
	c.sent = append(c.sent, text)
	if err, ok := c.failOn[idx]; ok {
		return err
	}
	return nil
}

func (c *fakeChannel) Typing(context.Context, string) func() {
	c.mu.Lock()
	c.typing++
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.stopped++
		c.mu.Unlock()
	}
}

func (c *fakeChannel) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	answer  string
	err     error

	// entered and release, when set, hold Generate until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (b *fakeBackend) Generate(_ context.Context, prompt, question string) (string, error) {
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.prompts = append(b.prompts, prompt)
	if b.err != nil {
		return "", b.err
	}
	if b.answer != "" {
		return b.answer, nil
	}
	return "answer to " + question, nil
}

type fakeMemo struct {
	m      map[string]string
	getErr error
}

func (f *fakeMemo) Get(_ context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.m[key]
	return v, ok, nil
}

func (f *fakeMemo) Set(_ context.Context, key, answer string) error {
	if f.m == nil {
		f.m = map[string]string{}
	}
	f.m[key] = answer
	return nil
}

var errBoom = errors.New("boom")
