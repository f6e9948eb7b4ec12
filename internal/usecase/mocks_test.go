// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"journal-ai-coach/internal/domain"
	"journal-ai-coach/internal/domain/model"
	"journal-ai-coach/internal/domain/ports/adapter"
	"journal-ai-coach/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- Transaction manager ----

type fakeTM struct{}

func (fakeTM) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// ---- Message repository ----

type memMessageRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{byID: map[string]*model.Message{}}
}

func (m *memMessageRepo) Save(ctx context.Context, qx any, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	cp := *msg
	m.byID[msg.ID] = &cp
	return nil
}

func (m *memMessageRepo) FindByID(ctx context.Context, qx any, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessageRepo) ClaimPending(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok || msg.Status != model.MessageStatusPending {
		return false, nil
	}
	now := time.Now()
	msg.Status = model.MessageStatusProcessing
	msg.Attempts++
	msg.ClaimedAt = &now
	msg.UpdatedAt = now
	return true, nil
}

func (m *memMessageRepo) ReclaimStuck(ctx context.Context, id string, staleAfter time.Duration, maxAttempts int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok || msg.Status != model.MessageStatusProcessing {
		return false, nil
	}
	if msg.ClaimedAt == nil || time.Since(*msg.ClaimedAt) < staleAfter || msg.Attempts >= maxAttempts {
		return false, nil
	}
	now := time.Now()
	msg.Attempts++
	msg.ClaimedAt = &now
	msg.UpdatedAt = now
	return true, nil
}

func (m *memMessageRepo) FindPendingAssistant(ctx context.Context, qx any, staleAfter time.Duration, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.byID {
		if msg.Role != model.RoleAssistant {
			continue
		}
		stale := msg.Status == model.MessageStatusProcessing &&
			msg.ClaimedAt != nil && time.Since(*msg.ClaimedAt) >= staleAfter
		if msg.Status == model.MessageStatusPending || stale {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessageRepo) FindNotifiable(ctx context.Context, qx any, delay time.Duration, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.byID {
		if msg.Role != model.RoleAssistant || msg.Status != model.MessageStatusCompleted {
			continue
		}
		if msg.NotificationSent || time.Since(msg.CreatedAt) < delay {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessageRepo) MarkNotified(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	msg.NotificationSent = true
	return nil
}

func (m *memMessageRepo) Finalize(ctx context.Context, qx any, id, content string, status model.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	// Terminal rows never change, matching the status predicate in the
	// postgres repo.
	if msg.Terminal() {
		return nil
	}
	msg.Content = content
	msg.Status = status
	msg.UpdatedAt = time.Now()
	return nil
}

// ---- Conversation repository ----

type memConvRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.Conversation
	messages *memMessageRepo
}

func newMemConvRepo(messages *memMessageRepo) *memConvRepo {
	return &memConvRepo{byID: map[string]*model.Conversation{}, messages: messages}
}

func (m *memConvRepo) Save(ctx context.Context, qx any, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conv
	cp.Messages = nil
	m.byID[conv.ID] = &cp
	return nil
}

func (m *memConvRepo) FindByID(ctx context.Context, qx any, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *memConvRepo) FindByIDWithMessages(ctx context.Context, qx any, id string) (*model.Conversation, error) {
	conv, err := m.FindByID(ctx, qx, id)
	if err != nil {
		return nil, err
	}
	m.messages.mu.Lock()
	defer m.messages.mu.Unlock()
	for _, msg := range m.messages.byID {
		if msg.ConversationID == id {
			conv.Messages = append(conv.Messages, *msg)
		}
	}
	sort.Slice(conv.Messages, func(i, j int) bool {
		return conv.Messages[i].CreatedAt.Before(conv.Messages[j].CreatedAt)
	})
	return conv, nil
}

func (m *memConvRepo) FindAllByUser(ctx context.Context, qx any, userID string) ([]*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Conversation
	for _, conv := range m.byID {
		if conv.UserID == userID {
			cp := *conv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memConvRepo) Touch(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.byID[id]; ok {
		conv.UpdatedAt = time.Now()
	}
	return nil
}

// ---- Job repository ----

type memJobRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{byID: map[string]*model.Job{}}
}

func (m *memJobRepo) Save(ctx context.Context, qx any, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	cp := *job
	m.byID[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, qx any, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memJobRepo) ClaimPending(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok || job.Status != model.JobStatusPending {
		return false, nil
	}
	job.Status = model.JobStatusProcessing
	job.UpdatedAt = time.Now()
	return true, nil
}

func (m *memJobRepo) AppendBuffer(ctx context.Context, qx any, id, buffer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Buffer = buffer
	return nil
}

func (m *memJobRepo) SetClientConnected(ctx context.Context, qx any, id string, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.ClientConnected = connected
	return nil
}

// ---- Push subscriptions / audit log / events / entries ----

type memPushSubRepo struct {
	mu   sync.Mutex
	subs []*model.PushSubscription
}

func (m *memPushSubRepo) Save(ctx context.Context, qx any, sub *model.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.UserID == sub.UserID && s.Endpoint == sub.Endpoint {
			cp := *sub
			m.subs[i] = &cp
			return nil
		}
	}
	cp := *sub
	m.subs = append(m.subs, &cp)
	return nil
}

func (m *memPushSubRepo) FindAllByUser(ctx context.Context, qx any, userID string) ([]*model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPushSubRepo) DeleteByEndpoint(ctx context.Context, qx any, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.subs[:0]
	for _, s := range m.subs {
		if !(s.UserID == userID && s.Endpoint == endpoint) {
			kept = append(kept, s)
		}
	}
	m.subs = kept
	return nil
}

type memSentRepo struct {
	mu   sync.Mutex
	rows []*model.SentNotification
}

func (m *memSentRepo) Save(ctx context.Context, qx any, n *model.SentNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memSentRepo) FindRecentByUser(ctx context.Context, qx any, userID string, since time.Time, limit int) ([]*model.SentNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SentNotification
	for _, r := range m.rows {
		if r.UserID == userID && !r.SentAt.Before(since) {
			cp := *r
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memEventRepo struct {
	mu   sync.Mutex
	byID map[string]*model.AgendaEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{byID: map[string]*model.AgendaEvent{}}
}

func (m *memEventRepo) Save(ctx context.Context, qx any, e *model.AgendaEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.byID[e.ID] = &cp
	return nil
}

func (m *memEventRepo) FindByID(ctx context.Context, qx any, id string) (*model.AgendaEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEventRepo) FindWithPendingReminders(ctx context.Context, qx any, horizon time.Time, limit int) ([]*model.AgendaEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AgendaEvent
	for _, e := range m.byID {
		pendingBefore := e.NotifyBefore && !e.BeforeSent && !e.BeforeFireTime().After(horizon)
		pendingAfter := e.NotifyAfter && !e.AfterSent && !e.AfterFireTime().After(horizon)
		if pendingBefore || pendingAfter {
			cp := *e
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memEventRepo) MarkBeforeSent(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.BeforeSent = true
	return nil
}

func (m *memEventRepo) MarkAfterSent(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.AfterSent = true
	return nil
}

type memEntryRepo struct {
	entries []*model.JournalEntry
}

func (m *memEntryRepo) FindRecentByUser(ctx context.Context, qx any, userID string, limit int) ([]*model.JournalEntry, error) {
	var out []*model.JournalEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Pass locker ----

type fakeLocker struct {
	err error
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

func (f *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	return nil
}

// ---- AI adapter ----

type fakeAI struct {
	mu     sync.Mutex
	reply  string
	chunks []string
	err    error
	calls  int
	// last prompt seen, for asserting history shaping
	lastPrompt []adapter.Message
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"gpt-4o-mini"}, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content)/4 + 4
	}
	return n, nil
}

func (f *fakeAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt = messages
	return f.reply, f.err
}

func (f *fakeAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	s, err := f.Chat(ctx, model, messages)
	return s, adapter.Usage{}, err
}

func (f *fakeAI) ChatStream(ctx context.Context, model string, messages []adapter.Message, fn adapter.StreamFunc) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastPrompt = messages
	chunks, reply, err := f.chunks, f.reply, f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	if fn != nil {
		for _, c := range chunks {
			if err := fn(c); err != nil {
				return "", err
			}
		}
	}
	if len(chunks) > 0 {
		full := ""
		for _, c := range chunks {
			full += c
		}
		return full, nil
	}
	return reply, nil
}

// ---- Push sender ----

type sentPush struct {
	Endpoint string
	Payload  adapter.PushPayload
}

type fakePushSender struct {
	mu          sync.Mutex
	sent        []sentPush
	gone        map[string]bool // endpoints answering 410
	unsupported bool
}

func (f *fakePushSender) Send(ctx context.Context, sub *model.PushSubscription, payload adapter.PushPayload) error {
	if f.unsupported {
		return domain.ErrPushUnsupported
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[sub.Endpoint] {
		return domain.ErrEndpointGone
	}
	f.sent = append(f.sent, sentPush{Endpoint: sub.Endpoint, Payload: payload})
	return nil
}

// ---- Task queue ----

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobID string, payload map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.enqueued = append(f.enqueued, jobID)
	return "qm-" + jobID, nil
}

// ---- Response generator ----

type fakeGenerator struct {
	mu     sync.Mutex
	text   string
	chunks []string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, conversationID string) (string, error) {
	return f.GenerateStream(ctx, conversationID, nil)
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, conversationID string, fn adapter.StreamFunc) (string, error) {
	f.mu.Lock()
	f.calls++
	text, chunks, err := f.text, f.chunks, f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	if fn != nil {
		for _, c := range chunks {
			if err := fn(c); err != nil {
				return "", err
			}
		}
	}
	if len(chunks) > 0 {
		full := ""
		for _, c := range chunks {
			full += c
		}
		return full, nil
	}
	return text, nil
}
