package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/teazle/autosocialai/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProfile() domain.ClientProfile {
	return domain.ClientProfile{
		Client: domain.Client{
			ID:         "client-1",
			Name:       "Acme Outdoors",
			BrandVoice: domain.VoiceFriendly,
			Timezone:   "UTC",
			Status:     domain.ClientActive,
		},
		Rules: domain.ContentRules{PostsPerWeek: 3, PostingDays: []int{1, 3, 5}, PostingTime: "10:00"},
		Assets: &domain.BrandAssets{
			ColorHex:    []string{"#0a7f3f"},
			BannedTerms: []string{"cheap"},
		},
	}
}

func verdict(score int, approved bool, messages ...string) domain.ValidationResult {
	return domain.ValidationResult{
		Approved: approved,
		Issues:   domain.ClassifyIssues(messages, domain.ScopeNone),
		Details: domain.ValidationDetails{
			ImageTextLanguage: domain.LanguageNone,
			ContentQuality:    domain.QualityMedium,
			OverallScore:      score,
		},
	}
}

type fakeText struct {
	mu     sync.Mutex
	err    error
	briefs []domain.ContentBrief
}

func (f *fakeText) GenerateText(_ context.Context, brief domain.ContentBrief) (domain.ContentDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.briefs = append(f.briefs, brief)
	if f.err != nil {
		return domain.ContentDraft{}, f.err
	}
	n := len(f.briefs)
	return domain.ContentDraft{
		Hook:      "Trail season starts now",
		CaptionIG: "Attempt caption for Instagram",
		CaptionFB: "Attempt caption for Facebook",
		CaptionTT: fmt.Sprintf("Attempt %d caption for TikTok", n),
	}, nil
}

func (f *fakeText) calls() []domain.ContentBrief {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ContentBrief(nil), f.briefs...)
}

type fakeImages struct {
	mu  sync.Mutex
	err error
	// errs overrides err per call, in order.
	errs   []error
	briefs []domain.ImageBrief
}

func (f *fakeImages) GenerateImage(_ context.Context, brief domain.ImageBrief) (domain.GeneratedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.briefs = append(f.briefs, brief)
	err := f.err
	if n := len(f.briefs) - 1; n < len(f.errs) {
		err = f.errs[n]
	}
	if err != nil {
		return domain.GeneratedImage{}, err
	}
	return domain.GeneratedImage{URL: "https://replicate.delivery/img.png", Model: "ideogram-ai/ideogram-v3-turbo"}, nil
}

type validatorReply struct {
	result domain.ValidationResult
	err    error
}

// scriptedValidator returns replies in order and repeats the last one.
type scriptedValidator struct {
	mu      sync.Mutex
	replies []validatorReply
	calls   []string
}

func (v *scriptedValidator) next(path string) (domain.ValidationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, path)
	idx := len(v.calls) - 1
	if idx >= len(v.replies) {
		idx = len(v.replies) - 1
	}
	r := v.replies[idx]
	return r.result, r.err
}

func (v *scriptedValidator) Validate(_ context.Context, draft domain.ContentDraft, _ string) (domain.ValidationResult, error) {
	if !draft.HasImage() {
		return verdict(0, false, "No image URL provided"), nil
	}
	return v.next("image")
}

func (v *scriptedValidator) ValidateTextOnly(context.Context, domain.ContentDraft, string) (domain.ValidationResult, error) {
	return v.next("text")
}

func (v *scriptedValidator) paths() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

type fakeStore struct {
	err error
}

func (f fakeStore) Store(_ context.Context, _ string, itemID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.googleapis.com/bucket/posts/" + itemID + ".png", nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// memoryStore implements the pipeline, client and account repositories.
type memoryStore struct {
	mu       sync.Mutex
	items    map[string]domain.PipelineItem
	inserts  int
	updates  int
	clients  map[string]domain.ClientProfile
	accounts map[string][]domain.SocialAccount
	logs     []domain.PostLog
}

func newMemoryStore(profiles ...domain.ClientProfile) *memoryStore {
	s := &memoryStore{
		items:    map[string]domain.PipelineItem{},
		clients:  map[string]domain.ClientProfile{},
		accounts: map[string][]domain.SocialAccount{},
	}
	for _, p := range profiles {
		s.clients[p.Client.ID] = p
	}
	return s
}

func (s *memoryStore) put(item domain.PipelineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

func (s *memoryStore) get(id string) domain.PipelineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *memoryStore) InsertItem(_ context.Context, item domain.PipelineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return errors.New("duplicate id")
	}
	s.inserts++
	s.items[item.ID] = item
	return nil
}

func (s *memoryStore) GetItem(_ context.Context, id string) (domain.PipelineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.PipelineItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (s *memoryStore) UpdateItem(_ context.Context, id string, u domain.PipelineUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.updates++
	item.Apply(u)
	s.items[id] = item
	return nil
}

func (s *memoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.PipelineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PipelineItem
	for _, item := range s.items {
		if item.ValidationStatus != domain.ValidationApproved || item.ScheduledAt.After(now) {
			continue
		}
		switch {
		case item.Status == domain.StatusPending, item.Status == domain.StatusGenerated:
		case item.Status == domain.StatusFailed && item.RetryCount < 3:
		default:
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ListScheduled(_ context.Context, clientID string, from, to time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, item := range s.items {
		if item.ClientID == clientID && !item.ScheduledAt.Before(from) && item.ScheduledAt.Before(to) {
			out = append(out, item.ScheduledAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *memoryStore) ListActiveClients(context.Context) ([]domain.ClientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ClientProfile
	for _, p := range s.clients {
		if p.Client.Status == domain.ClientActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client.Name < out[j].Client.Name })
	return out, nil
}

func (s *memoryStore) GetClient(_ context.Context, id string) (domain.ClientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.clients[id]
	if !ok {
		return domain.ClientProfile{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) ListAccounts(_ context.Context, clientID string) ([]domain.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SocialAccount(nil), s.accounts[clientID]...), nil
}

func (s *memoryStore) InsertPostLog(_ context.Context, log domain.PostLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *memoryStore) postLogs() []domain.PostLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PostLog(nil), s.logs...)
}

type fakePlatform struct {
	platform domain.Platform
	err      error
	mu       sync.Mutex
	tokens   []string
	captions []string
}

func (p *fakePlatform) Platform() domain.Platform { return p.platform }

func (p *fakePlatform) Publish(_ context.Context, account domain.SocialAccount, caption, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, account.AccessToken)
	p.captions = append(p.captions, caption)
	if p.err != nil {
		return "", p.err
	}
	return string(p.platform) + "-post-1", nil
}

type prefixTokens struct{}

func (prefixTokens) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", errors.New("empty token")
	}
	return "plain-" + encoded, nil
}

type staticSwitch bool

func (s staticSwitch) KillSwitchEnabled() bool { return bool(s) }

type countingLocker struct {
	mu    sync.Mutex
	keys  []string
	held  map[string]bool
	clash bool
}

func (l *countingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		l.clash = true
		return nil, errors.New("busy")
	}
	l.held[key] = true
	l.keys = append(l.keys, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
