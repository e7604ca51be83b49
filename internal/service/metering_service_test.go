package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBillingRepo struct {
	repository.BillingRepository
	mu      sync.Mutex
	basic   int64
	premium int64
	err     error
}

func (m *memBillingRepo) IncrementMaxModeUsage(ctx context.Context, userID string, category model.Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	switch category {
	case model.CategoryBasic:
		m.basic++
		return m.basic, nil
	case model.CategoryPremium:
		m.premium++
		return m.premium, nil
	}
	return 0, errors.New("unknown category")
}

type stubUserRepo struct {
	user *model.User
}

func (s *stubUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.user, nil
}

type recordingMeterClient struct {
	err   error
	calls chan struct {
		event    string
		customer string
		quantity int64
	}
}

func newRecordingMeterClient(err error) *recordingMeterClient {
	return &recordingMeterClient{
		err: err,
		calls: make(chan struct {
			event    string
			customer string
			quantity int64
		}, 8),
	}
}

func (c *recordingMeterClient) ReportUsageEvent(ctx context.Context, eventName, customerID string, quantity int64) error {
	c.calls <- struct {
		event    string
		customer string
		quantity int64
	}{eventName, customerID, quantity}
	return c.err
}

var testEventNames = map[model.Category]string{
	model.CategoryBasic:   "basic_model_usage",
	model.CategoryPremium: "premium_model_usage",
}

func TestRecordOverageIncrementsAndReports(t *testing.T) {
	customerID := "cus_123"
	billing := &memBillingRepo{}
	users := &stubUserRepo{user: &model.User{UserID: "u1", StripeCustomerID: &customerID}}
	client := newRecordingMeterClient(nil)
	svc := NewMeteringService(billing, users, client, testEventNames, time.Second, zerolog.Nop())

	n, err := svc.RecordOverage(context.Background(), "u1", model.CategoryPremium)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case call := <-client.calls:
		assert.Equal(t, "premium_model_usage", call.event)
		assert.Equal(t, customerID, call.customer)
		assert.Equal(t, int64(1), call.quantity)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for usage report")
	}

	n, err = svc.RecordOverage(context.Background(), "u1", model.CategoryPremium)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRecordOverageProviderFailureIsSwallowed(t *testing.T) {
	customerID := "cus_123"
	billing := &memBillingRepo{}
	users := &stubUserRepo{user: &model.User{UserID: "u1", StripeCustomerID: &customerID}}
	client := newRecordingMeterClient(errors.New("stripe unreachable"))
	svc := NewMeteringService(billing, users, client, testEventNames, time.Second, zerolog.Nop())

	n, err := svc.RecordOverage(context.Background(), "u1", model.CategoryBasic)
	require.NoError(t, err, "provider errors must never fail the request")
	assert.Equal(t, int64(1), n)

	select {
	case <-client.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for usage report attempt")
	}

	// The local counter of record keeps the unit regardless.
	billing.mu.Lock()
	defer billing.mu.Unlock()
	assert.Equal(t, int64(1), billing.basic)
}

func TestRecordOverageLocalFailurePropagates(t *testing.T) {
	billing := &memBillingRepo{err: errors.New("db down")}
	users := &stubUserRepo{}
	client := newRecordingMeterClient(nil)
	svc := NewMeteringService(billing, users, client, testEventNames, time.Second, zerolog.Nop())

	_, err := svc.RecordOverage(context.Background(), "u1", model.CategoryBasic)
	require.Error(t, err)

	// No report may be attempted when the local increment failed.
	select {
	case <-client.calls:
		t.Fatal("usage report attempted despite local failure")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecordOverageSkipsReportWithoutCustomerID(t *testing.T) {
	billing := &memBillingRepo{}
	users := &stubUserRepo{user: &model.User{UserID: "u1"}}
	client := newRecordingMeterClient(nil)
	svc := NewMeteringService(billing, users, client, testEventNames, time.Second, zerolog.Nop())

	n, err := svc.RecordOverage(context.Background(), "u1", model.CategoryBasic)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case <-client.calls:
		t.Fatal("usage report attempted without a billing customer")
	case <-time.After(100 * time.Millisecond):
	}
}
