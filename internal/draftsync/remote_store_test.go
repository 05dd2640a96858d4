package draftsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

func newTestRemote(t *testing.T, handler http.HandlerFunc, retries int) *RemoteStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRemoteStore(RemoteConfig{
		BaseURL:     srv.URL,
		AccessToken: "token-1",
		Timeout:     time.Second,
		RetryCount:  retries,
		RetryWait:   time.Millisecond,
	}, nil)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestRemoteStoreLoad(t *testing.T) {
	remote := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/drafts/me", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"data":{"ownerId":"u1","currentStep":3,"draftData":{"gender":"female"},"revision":42}}`)
	}, 0)

	snap, err := remote.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.CurrentStep)
	assert.Equal(t, int64(42), snap.Revision)
	assert.JSONEq(t, `{"gender":"female"}`, string(snap.DraftData))
}

func TestRemoteStoreClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"not found", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"draft not found","status":404}}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotFound)
		}},
		{"storage down", http.StatusServiceUnavailable, `{"error":{"code":"STORAGE_UNAVAILABLE","message":"storage temporarily unavailable","status":503}}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUnavailable)
		}},
		{"forbidden", http.StatusForbidden, `{"error":{"code":"FORBIDDEN","message":"account is banned","status":403}}`, func(t *testing.T, err error) {
			assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
			assert.False(t, errors.Is(err, ErrUnavailable))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}, 0)
			_, err := remote.Load(context.Background())
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestRemoteStoreNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	remote := NewRemoteStore(RemoteConfig{BaseURL: srv.URL, Timeout: 200 * time.Millisecond}, nil)

	_, err := remote.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRemoteStoreRetriesServerErrors(t *testing.T) {
	var calls int32
	remote := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"data":{"currentStep":1,"draftData":{},"revision":1}}`)
	}, 2)

	snap, err := remote.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Revision)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRemoteStoreSave(t *testing.T) {
	remote := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `2`, string(body["currentStep"]))
		assert.JSONEq(t, `{"height":"170"}`, string(body["draftData"]))
		assert.JSONEq(t, `9`, string(body["revision"]))
		writeJSON(w, http.StatusOK, `{"data":{"currentStep":2,"draftData":{"height":"170"},"revision":9}}`)
	}, 0)

	stored, err := remote.Save(context.Background(), Snapshot{CurrentStep: 2, DraftData: json.RawMessage(`{"height":"170"}`), Revision: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), stored.Revision)
}

func TestRemoteStoreDeleteMissingSucceeds(t *testing.T) {
	remote := newTestRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"draft not found","status":404}}`)
	}, 0)

	assert.NoError(t, remote.Delete(context.Background()))
}
