package upsert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/grow-sync/internal/domain"
	"github.com/cuongbtq/grow-sync/internal/mapping"
	"github.com/cuongbtq/grow-sync/internal/notion"
	"github.com/cuongbtq/grow-sync/internal/throttle"
)

const (
	historyDB = "0000000000000000000000000000aaaa"
	photoURL  = "https://store/photo-0123456789abcdef0123456789abcdef"
	photoID   = notion.RecordID("0123456789abcdef0123456789abcdef")
)

// memoryStore keeps records in memory and can throttle the first calls
type memoryStore struct {
	mu        sync.Mutex
	records   map[notion.RecordID]notion.Properties
	parents   map[notion.RecordID]string
	throttles int
	calls     []string
	nextID    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records: make(map[notion.RecordID]notion.Properties),
		parents: make(map[notion.RecordID]string),
	}
}

func (s *memoryStore) throttled(call string) error {
	s.calls = append(s.calls, call)
	if s.throttles > 0 {
		s.throttles--
		return &domain.ThrottledError{Err: &domain.StoreError{StatusCode: 429, Message: "slow down"}}
	}
	return nil
}

func (s *memoryStore) LookupByKey(_ context.Context, collectionID, keyProperty, key string) (notion.RecordID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.throttled("lookup"); err != nil {
		return "", false, err
	}
	for id, props := range s.records {
		if s.parents[id] == collectionID && props[keyProperty].PlainText() == key {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (s *memoryStore) Create(_ context.Context, collectionID string, props notion.Properties) (notion.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.throttled("create"); err != nil {
		return "", err
	}
	s.nextID++
	id := notion.RecordID(fmt.Sprintf("%032x", s.nextID))
	s.records[id] = props
	s.parents[id] = collectionID
	return id, nil
}

func (s *memoryStore) Update(_ context.Context, id notion.RecordID, props notion.Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.throttled("update"); err != nil {
		return err
	}
	current := s.records[id]
	if current == nil {
		current = notion.Properties{}
	}
	for k, v := range props {
		current[k] = v
	}
	s.records[id] = current
	return nil
}

func (s *memoryStore) ExtractID(url string) (notion.RecordID, error) {
	return notion.ExtractID(url)
}

func (s *memoryStore) historyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, parent := range s.parents {
		if parent == historyDB {
			n++
		}
	}
	return n
}

// mockStore is a testify mock of notion.Store
type mockStore struct {
	mock.Mock
}

func (m *mockStore) LookupByKey(ctx context.Context, collectionID, keyProperty, key string) (notion.RecordID, bool, error) {
	args := m.Called(ctx, collectionID, keyProperty, key)
	return args.Get(0).(notion.RecordID), args.Bool(1), args.Error(2)
}

func (m *mockStore) Create(ctx context.Context, collectionID string, props notion.Properties) (notion.RecordID, error) {
	args := m.Called(ctx, collectionID, props)
	return args.Get(0).(notion.RecordID), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id notion.RecordID, props notion.Properties) error {
	args := m.Called(ctx, id, props)
	return args.Error(0)
}

func (m *mockStore) ExtractID(url string) (notion.RecordID, error) {
	return notion.ExtractID(url)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(store notion.Store, collection string) *Coordinator {
	controller := throttle.New(throttle.Config{MinInterval: time.Millisecond, MaxRetries: 5}, testLogger(),
		throttle.WithSleep(func(context.Context, time.Duration) error { return nil }))
	return NewCoordinator(store, controller, collection, testLogger())
}

func historyRequest() Request {
	key := domain.IdempotencyKey(photoURL, "2024-01-15")
	return Request{
		Key:       key,
		SourceURL: photoURL,
		Properties: notion.Properties{
			mapping.FieldName:  notion.TitleValue("BLUE - 2024-01-15 - top"),
			mapping.FieldDate:  notion.DateValueOf("2024-01-15"),
			domain.FieldHealth: notion.NumberValue(80),
		},
	}
}

func TestUpsertRecord_Convergent(t *testing.T) {
	store := newMemoryStore()
	c := newTestCoordinator(store, historyDB)
	req := historyRequest()

	first, err := c.UpsertRecord(context.Background(), req)
	require.NoError(t, err)

	second, err := c.UpsertRecord(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.historyCount())
	assert.Equal(t, []string{"lookup", "create", "lookup", "update"}, store.calls)

	stored := store.records[first]
	assert.Equal(t, req.Key, stored[mapping.FieldIdempotencyKey].PlainText())
	assert.Equal(t, []notion.RelationRef{{ID: photoID.String()}}, stored[mapping.FieldRelatedPhoto].Relation)
}

func TestUpsertRecord_ConvergentUnderThrottling(t *testing.T) {
	store := newMemoryStore()
	store.throttles = 3
	c := newTestCoordinator(store, historyDB)
	req := historyRequest()

	_, err := c.UpsertRecord(context.Background(), req)
	require.NoError(t, err)
	store.throttles = 2
	_, err = c.UpsertRecord(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, store.historyCount())
}

func TestUpsertRecord_ConcurrentSameKey(t *testing.T) {
	store := newMemoryStore()
	c := newTestCoordinator(store, historyDB)
	req := historyRequest()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.UpsertRecord(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.historyCount())
}

func TestUpsertRecord_DoesNotMutateInput(t *testing.T) {
	c := newTestCoordinator(newMemoryStore(), historyDB)
	req := historyRequest()

	_, err := c.UpsertRecord(context.Background(), req)
	require.NoError(t, err)

	assert.NotContains(t, req.Properties, mapping.FieldIdempotencyKey)
	assert.NotContains(t, req.Properties, mapping.FieldRelatedPhoto)
}

func TestUpsertRecord_KeepsExplicitRelation(t *testing.T) {
	store := &mockStore{}
	c := newTestCoordinator(store, historyDB)

	req := historyRequest()
	explicit := notion.RelationValue("ffffffffffffffffffffffffffffffff")
	req.Properties[mapping.FieldRelatedPhoto] = explicit

	store.On("LookupByKey", mock.Anything, historyDB, mapping.FieldIdempotencyKey, req.Key).
		Return(notion.RecordID(""), false, nil).Once()
	store.On("Create", mock.Anything, historyDB, mock.MatchedBy(func(p notion.Properties) bool {
		return assert.ObjectsAreEqual(explicit, p[mapping.FieldRelatedPhoto])
	})).Return(notion.RecordID("11111111111111111111111111111111"), nil).Once()

	id, err := c.UpsertRecord(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, notion.RecordID("11111111111111111111111111111111"), id)
	store.AssertExpectations(t)
}

func TestUpsertRecord_Failures(t *testing.T) {
	t.Run("missing collection", func(t *testing.T) {
		store := &mockStore{}
		c := newTestCoordinator(store, "")

		_, err := c.UpsertRecord(context.Background(), historyRequest())
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		store.AssertNotCalled(t, "LookupByKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing name", func(t *testing.T) {
		store := &mockStore{}
		c := newTestCoordinator(store, historyDB)
		req := historyRequest()
		delete(req.Properties, mapping.FieldName)

		_, err := c.UpsertRecord(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrMissingTitle)
		store.AssertNotCalled(t, "LookupByKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid source url", func(t *testing.T) {
		store := &mockStore{}
		c := newTestCoordinator(store, historyDB)
		req := historyRequest()
		req.SourceURL = "https://store/nothing-here"

		_, err := c.UpsertRecord(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrInvalidURL)
	})

	t.Run("store error is not retried", func(t *testing.T) {
		store := &mockStore{}
		c := newTestCoordinator(store, historyDB)
		req := historyRequest()
		storeErr := &domain.StoreError{StatusCode: 400, Message: "bad filter"}

		store.On("LookupByKey", mock.Anything, historyDB, mapping.FieldIdempotencyKey, req.Key).
			Return(notion.RecordID(""), false, storeErr).Once()

		_, err := c.UpsertRecord(context.Background(), req)
		assert.ErrorIs(t, err, storeErr)
		store.AssertNumberOfCalls(t, "LookupByKey", 1)
	})
}

func TestUpdateRecord(t *testing.T) {
	store := &mockStore{}
	c := newTestCoordinator(store, historyDB)
	props := notion.Properties{domain.FieldHealth: notion.NumberValue(90)}

	store.On("Update", mock.Anything, photoID, props).Return(nil).Once()

	id, err := c.UpdateRecord(context.Background(), photoURL, props)
	require.NoError(t, err)
	assert.Equal(t, photoID, id)
	store.AssertExpectations(t)

	_, err = c.UpdateRecord(context.Background(), "https://store/missing", props)
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}
