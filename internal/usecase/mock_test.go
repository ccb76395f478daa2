//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/domain/ports/repository"
)

// ---- Generation repository (in-memory, compare-and-set like the SQL) ----

type MockGenerationRepo struct {
	mu   sync.Mutex
	rows map[string]model.Generation

	AdvanceCalls int
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Generation, error)
}

var _ repository.GenerationRepository = (*MockGenerationRepo)(nil)

func NewMockGenerationRepo(gens ...*model.Generation) *MockGenerationRepo {
	m := &MockGenerationRepo{rows: map[string]model.Generation{}}
	for _, g := range gens {
		m.rows[g.ID] = *g
	}
	return m
}

func (m *MockGenerationRepo) Get(id string) model.Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *MockGenerationRepo) snapshot() map[string]model.Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]model.Generation, len(m.rows))
	for k, v := range m.rows {
		cp[k] = v
	}
	return cp
}

func (m *MockGenerationRepo) restore(rows map[string]model.Generation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
}

func (m *MockGenerationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Generation, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

func (m *MockGenerationRepo) FindByIDForOwner(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Generation, error) {
	g, err := m.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

func (m *MockGenerationRepo) FindByTaskID(ctx context.Context, tx repository.Tx, taskID string) (*model.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.rows {
		if g.ProviderTaskID != nil && *g.ProviderTaskID == taskID {
			g := g
			return &g, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockGenerationRepo) Advance(ctx context.Context, tx repository.Tx, id string, upd model.GenerationUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AdvanceCalls++
	g, ok := m.rows[id]
	if !ok || g.Status.IsTerminal() {
		return false, nil
	}
	g.Status = upd.Status
	if upd.Progress != nil {
		p := *upd.Progress
		g.Progress = &p
	}
	if upd.OutputURL != nil {
		u := *upd.OutputURL
		g.OutputURL = &u
	}
	if upd.Error != nil {
		e := *upd.Error
		g.Error = &e
	}
	if upd.Status.IsTerminal() {
		now := time.Now()
		g.CompletedAt = &now
	}
	m.rows[id] = g
	return true, nil
}

func (m *MockGenerationRepo) ListStale(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Generation
	for _, g := range m.rows {
		if !g.Status.IsTerminal() && g.CreatedAt.Before(olderThan) {
			g := g
			out = append(out, &g)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---- Model repository ----

type MockModelRepo struct {
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Model, error)
}

func (m *MockModelRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Model, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	return nil, domain.ErrNotFound
}

// ---- Asset repository ----

type MockAssetRepo struct {
	mu    sync.Mutex
	Saved []*model.Asset

	SaveFunc       func(ctx context.Context, tx repository.Tx, a *model.Asset) error
	FindOutputFunc func(ctx context.Context, tx repository.Tx, generationID string) (*model.Asset, error)
}

func (m *MockAssetRepo) Save(ctx context.Context, tx repository.Tx, a *model.Asset) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, a)
	return nil
}

func (m *MockAssetRepo) FindOutput(ctx context.Context, tx repository.Tx, generationID string) (*model.Asset, error) {
	if m.FindOutputFunc != nil {
		return m.FindOutputFunc(ctx, tx, generationID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Saved) - 1; i >= 0; i-- {
		if m.Saved[i].GenerationID == generationID {
			return m.Saved[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Credit repository ----

type creditCall struct {
	Action       model.SettlementAction
	OwnerID      string
	GenerationID string
	Amount       float64
	Meta         map[string]any
}

type MockCreditRepo struct {
	mu    sync.Mutex
	Calls []creditCall

	Err error // returned by both RPCs when set
}

func (m *MockCreditRepo) Finalize(ctx context.Context, tx repository.Tx, ownerID, generationID string, finalAmount float64, meta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, creditCall{model.SettlementFinalize, ownerID, generationID, finalAmount, meta})
	return m.Err
}

func (m *MockCreditRepo) Refund(ctx context.Context, tx repository.Tx, ownerID, generationID string, meta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, creditCall{model.SettlementRefund, ownerID, generationID, 0, meta})
	return m.Err
}

func (m *MockCreditRepo) Count(action model.SettlementAction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Action == action {
			n++
		}
	}
	return n
}

// ---- Provider task repository ----

type MockProviderTaskRepo struct {
	mu    sync.Mutex
	Tasks map[string]*model.ProviderTask
}

func NewMockProviderTaskRepo() *MockProviderTaskRepo {
	return &MockProviderTaskRepo{Tasks: map[string]*model.ProviderTask{}}
}

func (m *MockProviderTaskRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.ProviderTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks[t.TaskID] = t
	return nil
}

// ---- Provider client ----

type MockProvider struct {
	mu            sync.Mutex
	StatusCalls   int
	StatusFunc    func(ctx context.Context, taskID, family string) (*model.ProviderStatusResult, error)
	DownloadCalls int
	DownloadFunc  func(ctx context.Context, taskID, family string) (string, error)
}

var _ adapter.ProviderClient = (*MockProvider)(nil)

func (m *MockProvider) Status(ctx context.Context, taskID, family string) (*model.ProviderStatusResult, error) {
	m.mu.Lock()
	m.StatusCalls++
	m.mu.Unlock()
	return m.StatusFunc(ctx, taskID, family)
}

func (m *MockProvider) DownloadURL(ctx context.Context, taskID, family string) (string, error) {
	m.mu.Lock()
	m.DownloadCalls++
	m.mu.Unlock()
	return m.DownloadFunc(ctx, taskID, family)
}

func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StatusCalls + m.DownloadCalls
}

// ---- Output fetcher and object storage ----

type MockFetcher struct {
	FetchFunc func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return m.FetchFunc(ctx, url)
}

type MockStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte
	PutErr  error
}

var _ adapter.ObjectStorage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage { return &MockStorage{Objects: map[string][]byte{}} }

func (m *MockStorage) Bucket() string { return "outputs" }

func (m *MockStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = body
	return nil
}

func (m *MockStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	return "https://signed.example/" + key, time.Now().Add(ttl), nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// NewRollbackTxManager restores the generation rows when fn fails, the way a
// real rollback would.
func NewRollbackTxManager(gens *MockGenerationRepo) *MockTxManager {
	return &MockTxManager{
		WithTxFunc: func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			snap := gens.snapshot()
			if err := fn(ctx, repository.NoTX); err != nil {
				gens.restore(snap)
				return err
			}
			return nil
		},
	}
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	Err   error
	seq   int
	Locks int
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return "", l.Err
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrPollInProgress
	}
	l.seq++
	l.Locks++
	token := time.Now().Format(time.RFC3339Nano) + string(rune('a'+l.seq%26))
	l.held[key] = token
	return token, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *MockLocker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "someone-else"
}

func (l *MockLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// ---- Task runner ----

type inlineRunner struct{}

func (inlineRunner) RunAll(ctx context.Context, tasks []func(ctx context.Context) error) []error {
	errs := make([]error, len(tasks))
	for i, fn := range tasks {
		errs[i] = fn(ctx)
	}
	return errs
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func ptr[T any](v T) *T { return &v }

// usecaseStorage and usecaseLocker keep a nil mock from becoming a non-nil interface.
func usecaseStorage(s *MockStorage) adapter.ObjectStorage {
	if s == nil {
		return nil
	}
	return s
}

func usecaseLocker(l *MockLocker) adapter.Locker {
	if l == nil {
		return nil
	}
	return l
}
