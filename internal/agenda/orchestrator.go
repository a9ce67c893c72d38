package agenda

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"feedcal/internal/ics"
	appLog "feedcal/internal/log"
	"feedcal/internal/model"
)

// DocumentFetcher is the HTTP collaborator. Implementations return the
// body and status for any completed exchange and an error only when no
// response was obtained.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, url string) ([]byte, int, error)
}

// fetchSlot is the private result cell of one fetch goroutine.
type fetchSlot struct {
	doc     model.RawDocument
	err     error
	elapsed time.Duration
}

type fetchReply struct {
	body   []byte
	status int
	err    error
}

// fetchSources fans out one goroutine per source and waits for all of them
// to finish or hit their deadline. Slot i belongs to sources[i].
func (a *Aggregator) fetchSources(ctx context.Context, sources []model.CalendarSource, timeout time.Duration) []fetchSlot {
	slots := make([]fetchSlot, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src model.CalendarSource) {
			defer wg.Done()
			slots[i] = a.fetchOne(ctx, src, timeout)
		}(i, src)
	}
	wg.Wait()

	return slots
}

func (a *Aggregator) fetchOne(ctx context.Context, src model.CalendarSource, timeout time.Duration) fetchSlot {
	started := time.Now()
	slot := fetchSlot{doc: model.RawDocument{Source: src}}

	if src.URL == "" {
		slot.err = newSourceError(KindConfig, 0, errors.New("source URL is empty"))
		return slot
	}

	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The reply channel is buffered so a fetcher that ignores ctx can still
	// finish; its late answer is dropped.
	replyCh := make(chan fetchReply, 1)
	go func() {
		body, status, err := a.fetcher.GetDocument(taskCtx, src.URL)
		replyCh <- fetchReply{body: body, status: status, err: err}
	}()

	var reply fetchReply
	select {
	case reply = <-replyCh:
	case <-taskCtx.Done():
		reply = fetchReply{err: taskCtx.Err()}
	}
	slot.elapsed = time.Since(started)

	if err := classifyReply(taskCtx, reply); err != nil {
		slot.err = err
		appLog.Error("source fetch failed", err,
			"source", src.DisplayName(),
			"url", ics.RedactURL(src.URL),
			"elapsed", slot.elapsed,
		)
		return slot
	}

	slot.doc.Text = reply.body
	return slot
}

// classifyReply maps a fetch reply onto the error taxonomy; nil means the
// body looks like a calendar and may be parsed.
func classifyReply(taskCtx context.Context, r fetchReply) error {
	if r.err != nil {
		if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return newSourceError(KindTimeout, 0, ErrTimeout)
		}
		return newSourceError(KindNetwork, r.status, r.err)
	}
	if r.status < http.StatusOK || r.status > 299 {
		return newSourceError(KindNetwork, r.status, errors.New(http.StatusText(r.status)))
	}
	if len(r.body) == 0 {
		return newSourceError(KindFormat, 0, ErrEmptyResponse)
	}
	if !ics.LooksLikeCalendar(r.body) {
		return newSourceError(KindFormat, 0, ErrNotCalendar)
	}
	return nil
}
