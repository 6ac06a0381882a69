package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStopsCallsAtThreshold(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second, NewBreaker(3, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := client.UpdateUserEntitlement(ctx, 1, EntitlementUpdate{MaxConcurrentBots: 5})
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr, "call %d should surface the request error", i+1)
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))

	// The fourth call must fail fast with no network attempt.
	err := client.UpdateUserEntitlement(ctx, 1, EntitlementUpdate{MaxConcurrentBots: 5})
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestBreakerRecoveryProbe(t *testing.T) {
	var calls int32
	var failing atomic.Bool
	failing.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Now()
	breaker := NewBreaker(2, time.Minute)
	breaker.now = func() time.Time { return now }
	client := NewClient(srv.URL, "secret", time.Second, breaker)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = client.UpdateUserEntitlement(ctx, 1, EntitlementUpdate{})
	}
	require.ErrorIs(t, client.UpdateUserEntitlement(ctx, 1, EntitlementUpdate{}), ErrCircuitOpen)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))

	// Past the cooldown the next call is attempted against the transport.
	failing.Store(false)
	now = now.Add(2 * time.Minute)
	require.NoError(t, client.UpdateUserEntitlement(ctx, 1, EntitlementUpdate{MaxConcurrentBots: 3}))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, 0, breaker.State().ConsecutiveFailures)
}

func TestTimeoutCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", 50*time.Millisecond, NewBreaker(5, time.Minute))
	err := client.UpdateUserEntitlement(context.Background(), 1, EntitlementUpdate{})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 1, client.Breaker().State().ConsecutiveFailures)
}

func TestFindOrCreateUserToleratesConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/admin/users", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Admin-API-Key"))

		// Existing user: 409 with the current record is still a success.
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(User{ID: 42, Email: "a@b.c", Name: "Acme"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second, nil)
	user, err := client.FindOrCreateUser(context.Background(), "a@b.c", "Acme")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.EqualValues(t, 42, user.ID)
	assert.Equal(t, 0, client.Breaker().State().ConsecutiveFailures)
}

func TestUpdateUserEntitlementRequestShape(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/admin/users/42", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second, nil)
	err := client.UpdateUserEntitlement(context.Background(), 42, EntitlementUpdate{
		MaxConcurrentBots: 15,
		Data: EntitlementData{
			SubscriptionID: "sub_123",
			Tier:           "Startup",
			Status:         "active",
		},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 15, captured["max_concurrent_bots"])
	data, ok := captured["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sub_123", data["subscription_id"])
	assert.Equal(t, "webhook", data["updated_by"], "updated_by defaults to webhook")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/users/-1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second, nil)
	status := client.Health(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Breaker.IsOpen)
}

func TestHealthUnhealthyWhenDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL, "secret", 100*time.Millisecond, nil)
	status := client.Health(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.NotEmpty(t, status.Error)
	assert.Equal(t, 1, client.Breaker().State().ConsecutiveFailures)
}
