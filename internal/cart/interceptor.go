package cart

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/mohmed402/wasel/internal/metrics"
)

const maxSampleKeys = 30

// Interceptor inspects network responses while a page loads and keeps the
// best few that look like cart payloads. The admission check runs inline on
// the response event; body reads and parsing run on their own goroutines.
type Interceptor struct {
	site    *Site
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu            sync.Mutex
	closed        bool
	seq           int
	kept          candidateHeap
	rejectedCount int
	rejectedURLs  []string
	sampleKeys    []string
	sampleSeen    map[string]struct{}

	pending sync.WaitGroup
}

func NewInterceptor(site *Site, logger *slog.Logger, m *metrics.Metrics) *Interceptor {
	return &Interceptor{
		site:       site,
		logger:     logger.With("component", "interceptor"),
		metrics:    m,
		now:        time.Now,
		sampleSeen: make(map[string]struct{}),
	}
}

// Observe is the page response handler. It never blocks on the body.
func (i *Interceptor) Observe(resp Response) {
	rawURL := resp.URL()
	if !i.admit(rawURL, resp.ContentType()) {
		return
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.pending.Add(1)
	i.mu.Unlock()

	go func() {
		defer i.pending.Done()
		body, err := resp.Body()
		if err != nil {
			i.logger.Debug("response body unavailable", "url", rawURL, "error", err)
			i.reject(rawURL, "body_unavailable", nil)
			return
		}
		i.inspect(rawURL, body)
	}()
}

// admit is the constant-time gate: JSON only, site hosts only, denylisted
// endpoints never.
func (i *Interceptor) admit(rawURL, contentType string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !isJSON(contentType, u.Path) {
		return false
	}
	if !i.site.HostAllowed(u.Hostname()) {
		return false
	}
	for _, marker := range i.site.Denylist {
		if marker != "" && strings.Contains(rawURL, marker) {
			i.metrics.IncCaptured("denylisted")
			return false
		}
	}
	return true
}

func isJSON(contentType, urlPath string) bool {
	if contentType != "" {
		// A malformed parameter still yields the media type.
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil || errors.Is(err, mime.ErrInvalidMediaParameter) {
			if mediaType == "application/json" || mediaType == "text/json" || strings.HasSuffix(mediaType, "+json") {
				return true
			}
		}
		lower := strings.ToLower(contentType)
		if strings.Contains(lower, "application/json") || strings.Contains(lower, "text/json") {
			return true
		}
	}
	return strings.EqualFold(path.Ext(urlPath), ".json")
}

func (i *Interceptor) inspect(rawURL string, body []byte) {
	if limit := i.site.Tuning.MaxBodyBytes; limit > 0 && len(body) > limit {
		i.reject(rawURL, "too_large", nil)
		return
	}

	root, err := decodeJSON(body)
	if err != nil {
		i.logger.Debug("response is not valid json", "url", rawURL, "error", err)
		i.reject(rawURL, "parse_error", nil)
		return
	}

	items, itemsPath, reason, sample := i.site.locateItems(root)
	if items == nil {
		i.reject(rawURL, reason, sample)
		return
	}

	c := CapturedResponse{
		SourceURL:     rawURL,
		Items:         items,
		ItemsPath:     itemsPath,
		ItemCount:     len(items),
		HasProperties: true,
		Score:         Score(true, len(items), i.site.Tuning.PropertyWeight),
		CapturedAt:    i.now(),
	}
	i.keep(c)
	i.metrics.IncCaptured("accepted")
	i.logger.Debug("captured candidate", "url", rawURL, "path", itemsPath, "items", c.ItemCount, "score", c.Score)
}

func (i *Interceptor) keep(c CapturedResponse) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.seq++
	c.seq = i.seq
	heap.Push(&i.kept, c)
	if max := i.site.Tuning.MaxCandidates; max > 0 && i.kept.Len() > max {
		heap.Pop(&i.kept)
	}
}

func (i *Interceptor) reject(rawURL, reason string, sample any) {
	i.metrics.IncCaptured(reason)

	i.mu.Lock()
	defer i.mu.Unlock()

	i.rejectedCount++
	if max := i.site.Tuning.MaxRejected; max <= 0 || len(i.rejectedURLs) < max {
		i.rejectedURLs = append(i.rejectedURLs, rawURL)
	}
	if obj, ok := sample.(map[string]any); ok {
		for _, k := range sortedKeys(obj) {
			if len(i.sampleKeys) >= maxSampleKeys {
				break
			}
			if _, seen := i.sampleSeen[k]; seen {
				continue
			}
			i.sampleSeen[k] = struct{}{}
			i.sampleKeys = append(i.sampleKeys, k)
		}
	}
}

// Wait stops admitting new responses and blocks until every in-flight body
// read has finished or ctx is done.
func (i *Interceptor) Wait(ctx context.Context) error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Candidates returns a snapshot of the kept responses.
func (i *Interceptor) Candidates() []CapturedResponse {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]CapturedResponse, len(i.kept))
	copy(out, i.kept)
	return out
}

// Diagnostics summarizes rejected traffic for the failure report.
func (i *Interceptor) Diagnostics() Diagnostics {
	i.mu.Lock()
	defer i.mu.Unlock()

	return Diagnostics{
		CapturedCount: i.rejectedCount,
		CapturedURLs:  append([]string{}, i.rejectedURLs...),
		SampleKeys:    append([]string{}, i.sampleKeys...),
		AcceptedCount: len(i.kept),
	}
}

// candidateHeap is a min-heap with the weakest candidate on top, so the
// collection can be trimmed to its best entries in O(log n).
type candidateHeap []CapturedResponse

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(a, b int) bool { return better(h[b], h[a]) }
func (h candidateHeap) Swap(a, b int)      { h[a], h[b] = h[b], h[a] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(CapturedResponse))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
