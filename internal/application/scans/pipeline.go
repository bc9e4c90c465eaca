package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subwatch/subwatch/internal/domain/mailbox"
	"github.com/subwatch/subwatch/internal/domain/providers"
	"github.com/subwatch/subwatch/internal/domain/reports"
	domain "github.com/subwatch/subwatch/internal/domain/scans"
	subsdomain "github.com/subwatch/subwatch/internal/domain/subscriptions"
)

// Options are the pipeline tunables. Zero fields fall back to defaults so
// callers only override what they need.
type Options struct {
	SearchWorkers  int           // concurrent provider searches
	FetchWorkers   int           // concurrent message fetches
	MaxPerProvider int           // search result cap per provider
	MaxCandidates  int           // ranked candidates sent to extraction
	MinBodyLength  int           // shorter decoded bodies are dropped
	MaxEmailText   int           // extraction input truncation
	ExtractBatch   int           // emails per extraction batch
	RequestDelay   time.Duration // between mailbox requests per worker
	BatchDelay     time.Duration // between extraction batches
}

func DefaultOptions() Options {
	return Options{
		SearchWorkers:  5,
		FetchWorkers:   5,
		MaxPerProvider: 10,
		MaxCandidates:  50,
		MinBodyLength:  40,
		MaxEmailText:   4000,
		ExtractBatch:   5,
		RequestDelay:   200 * time.Millisecond,
		BatchDelay:     time.Second,
	}
}

func (s *Service) opts() Options {
	o := s.Opts
	d := DefaultOptions()
	if o.SearchWorkers <= 0 {
		o.SearchWorkers = d.SearchWorkers
	}
	if o.FetchWorkers <= 0 {
		o.FetchWorkers = d.FetchWorkers
	}
	if o.MaxPerProvider <= 0 {
		o.MaxPerProvider = d.MaxPerProvider
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = d.MaxCandidates
	}
	if o.MinBodyLength <= 0 {
		o.MinBodyLength = d.MinBodyLength
	}
	if o.MaxEmailText <= 0 {
		o.MaxEmailText = d.MaxEmailText
	}
	if o.ExtractBatch <= 0 {
		o.ExtractBatch = d.ExtractBatch
	}
	return o
}

// candidate is one decoded message together with the provider whose query
// found it and its ranking score.
type candidate struct {
	provider providers.Provider
	msg      *mailbox.Message
	score    float64
}

// runPipeline executes the whole scan: search, fetch, rank, extract,
// dedup, write, archive, finalize. Per-item failures are absorbed and
// recorded; only a storage write failure is fatal to the scan.
func (s *Service) runPipeline(ctx context.Context, userID string, lg *domain.ScanLog) {
	opts := s.opts()
	scanID := string(lg.ID)

	s.Logger.Info("scan started", "scan", scanID, "user", userID, "providers", len(providers.All()))

	msgIDs, stats := s.searchProviders(ctx, userID, scanID, opts)
	s.Logger.Info("search done", "scan", scanID, "messages", len(msgIDs))

	cands := s.fetchMessages(ctx, userID, scanID, msgIDs, opts)
	s.Logger.Info("fetch done", "scan", scanID, "decoded", len(cands))

	cands = rank(cands, s.Clock.Now(), opts.MaxCandidates)

	results, processed := s.extract(ctx, userID, scanID, cands, opts)
	s.Logger.Info("extract done", "scan", scanID, "processed", processed, "extracted", len(results))

	subs := s.collect(userID, results)

	if len(subs) > 0 {
		if err := s.Subs.UpsertAll(ctx, userID, subs); err != nil {
			s.Logger.Error("subscription write failed", "scan", scanID, "error", err)
			s.finish(userID, lg.ID, domain.StatusFailed, processed, 0, err.Error(), "")
			return
		}
	}
	s.Logger.Info("write done", "scan", scanID, "subscriptions", len(subs))

	reportURL := s.archive(ctx, userID, lg, processed, len(subs), stats)

	s.finish(userID, lg.ID, domain.StatusCompleted, processed, len(subs), "", reportURL)
	s.Logger.Info("scan completed", "scan", scanID, "emails", processed, "found", len(subs))
}

// providerHit pairs a message id with the provider whose query matched it.
type providerHit struct {
	provider providers.Provider
	msgID    string
}

// searchProviders runs every catalog query through a bounded worker pool.
// A provider that fails (after the client's one refresh-and-retry)
// contributes zero messages and is recorded, never aborting the scan.
func (s *Service) searchProviders(ctx context.Context, userID, scanID string, opts Options) ([]providerHit, []reports.ProviderStat) {
	jobs := make(chan providers.Provider)
	var mu sync.Mutex
	var hits []providerHit
	var stats []reports.ProviderStat

	var wg sync.WaitGroup
	for w := 0; w < opts.SearchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				time.Sleep(opts.RequestDelay)
				ids, err := s.Mailbox.Search(ctx, p.Query, opts.MaxPerProvider)
				mu.Lock()
				if err != nil {
					s.recordError(userID, scanID, p.Name, "search", err)
					stats = append(stats, reports.ProviderStat{Provider: p.Name, Failed: true})
				} else {
					for _, id := range ids {
						hits = append(hits, providerHit{provider: p, msgID: id})
					}
					stats = append(stats, reports.ProviderStat{Provider: p.Name, Messages: len(ids)})
				}
				mu.Unlock()
			}
		}()
	}

	for _, p := range providers.All() {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	return hits, stats
}

// fetchMessages retrieves message details with bounded concurrency and
// drops messages whose decoded body is empty or too short.
func (s *Service) fetchMessages(ctx context.Context, userID, scanID string, hits []providerHit, opts Options) []candidate {
	jobs := make(chan providerHit)
	var mu sync.Mutex
	var out []candidate

	var wg sync.WaitGroup
	for w := 0; w < opts.FetchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range jobs {
				time.Sleep(opts.RequestDelay)
				msg, err := s.Mailbox.Fetch(ctx, h.msgID)
				if err != nil {
					s.recordError(userID, scanID, h.provider.Name, "fetch", err)
					continue
				}
				if len(strings.TrimSpace(msg.Body)) < opts.MinBodyLength {
					continue
				}
				mu.Lock()
				out = append(out, candidate{provider: h.provider, msg: msg})
				mu.Unlock()
			}
		}()
	}

	for _, h := range hits {
		jobs <- h
	}
	close(jobs)
	wg.Wait()

	return out
}

// rank scores candidates by recency plus the provider priority boost and
// keeps the top n, bounding extraction work regardless of mailbox size.
// Each priority point outweighs one day of staleness.
func rank(cands []candidate, now time.Time, n int) []candidate {
	for i := range cands {
		age := now.Sub(cands[i].msg.Date).Hours()
		cands[i].score = float64(cands[i].provider.Priority)*24 - age
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

// extracted is one candidate with its model output attached.
type extracted struct {
	candidate
	result extractionResult
}

type extractionResult struct {
	ProviderName    string
	Amount          float64
	NextBillingDate *time.Time
	Status          string
}

// extract runs the AI extraction in small sequential batches with a delay
// in between, honoring the stricter rate limit of the extraction service.
// Returns the surviving results and the number of emails processed.
func (s *Service) extract(ctx context.Context, userID, scanID string, cands []candidate, opts Options) ([]extracted, int) {
	var out []extracted
	processed := 0

	for start := 0; start < len(cands); start += opts.ExtractBatch {
		if start > 0 && opts.BatchDelay > 0 {
			time.Sleep(opts.BatchDelay)
		}
		end := start + opts.ExtractBatch
		if end > len(cands) {
			end = len(cands)
		}
		for _, c := range cands[start:end] {
			processed++
			text := c.msg.Body
			if len(text) > opts.MaxEmailText {
				text = text[:opts.MaxEmailText]
			}
			res, err := s.AI.ExtractSubscription(ctx, text)
			if err != nil {
				// Per-email failure: log, record, move on.
				s.recordError(userID, scanID, c.provider.Name, "extract", err)
				continue
			}
			if res.Empty() {
				continue
			}
			out = append(out, extracted{
				candidate: c,
				result: extractionResult{
					ProviderName:    res.ProviderName,
					Amount:          res.Amount,
					NextBillingDate: res.NextBillingDate,
					Status:          res.Status,
				},
			})
		}
	}
	return out, processed
}

// collect deduplicates extraction results (first seen wins) and maps the
// survivors to subscription rows with a confidence score.
func (s *Service) collect(userID string, results []extracted) []*subsdomain.Subscription {
	seen := make(map[string]bool)
	var subs []*subsdomain.Subscription

	for _, r := range results {
		key := dedupKey(r.result.ProviderName, r.result.Amount, r.result.NextBillingDate)
		if seen[key] {
			continue
		}
		seen[key] = true

		p := r.provider
		if cp, ok := providers.ByName(r.result.ProviderName); ok {
			p = cp
		}
		conf := confidence(p, r.msg, r.result.Amount, r.result.NextBillingDate)

		status := subsdomain.Status(r.result.Status)
		if status == "" {
			status = subsdomain.StatusActive
		}

		now := s.Clock.Now()
		subs = append(subs, &subsdomain.Subscription{
			ID:               subsdomain.SubscriptionID(uuid.New().String()),
			UserID:           userID,
			Name:             r.result.ProviderName,
			Cost:             r.result.Amount,
			BillingFrequency: guessFrequency(r.msg.Body),
			Category:         p.Category,
			NextBillingDate:  r.result.NextBillingDate,
			Status:           status,
			IsManual:         false,
			IsPendingReview:  conf < 0.8,
			EmailSource:      r.msg.Subject,
			Confidence:       conf,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return subs
}

// archive uploads the scan report JSON; losing the report never fails the
// scan, so errors only get logged.
func (s *Service) archive(ctx context.Context, userID string, lg *domain.ScanLog, processed, found int, stats []reports.ProviderStat) string {
	if s.Archive == nil {
		return ""
	}
	rep := reports.ScanReport{
		ScanID:             string(lg.ID),
		UserID:             userID,
		StartedAt:          lg.StartedAt,
		CompletedAt:        s.Clock.Now(),
		Status:             string(domain.StatusCompleted),
		EmailsProcessed:    processed,
		SubscriptionsFound: found,
		Providers:          stats,
	}
	data, err := json.Marshal(rep)
	if err != nil {
		s.Logger.Warn("marshal scan report", "scan", lg.ID, "error", err)
		return ""
	}
	key := fmt.Sprintf("%s/%s.json", userID, lg.ID)
	url, err := s.Archive.Put(ctx, key, data)
	if err != nil {
		s.Logger.Warn("archive scan report", "scan", lg.ID, "error", err)
		return ""
	}
	return url
}

var subjectKeywords = []string{
	"subscription", "receipt", "payment", "invoice",
	"renewal", "membership", "billing",
}

// confidence scores one extraction: 0.5 base, +0.3 when the sender domain
// is one of the provider's known domains, +0.2 when the subject carries a
// subscription keyword, +0.2 when both amount and date were extracted.
// Clamped to [0, 1].
func confidence(p providers.Provider, msg *mailbox.Message, amount float64, date *time.Time) float64 {
	score := 0.5
	if domainMatch(msg.From, p.Domains) {
		score += 0.3
	}
	subject := strings.ToLower(msg.Subject)
	for _, kw := range subjectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
			break
		}
	}
	if amount > 0 && date != nil {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// domainMatch checks whether the sender address ends in one of the known
// domains. From may be a bare address or "Name <addr>".
func domainMatch(from string, domains []string) bool {
	addr := from
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// dedupKey builds the composite (provider, amount, date) key used for
// first-seen-wins deduplication within one scan.
func dedupKey(name string, amount float64, date *time.Time) string {
	day := "-"
	if date != nil {
		day = date.Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%.2f|%s", strings.ToLower(strings.TrimSpace(name)), amount, day)
}

// guessFrequency infers the billing frequency from the email text.
// The extraction service is only asked for the four core fields, so this
// stays a string heuristic with monthly as the safe default.
func guessFrequency(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "annual") || strings.Contains(t, "yearly") || strings.Contains(t, "per year") || strings.Contains(t, "/year"):
		return subsdomain.FrequencyYearly
	case strings.Contains(t, "weekly") || strings.Contains(t, "per week") || strings.Contains(t, "/week"):
		return subsdomain.FrequencyWeekly
	default:
		return subsdomain.FrequencyMonthly
	}
}
