package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldr/foldr-go/internal/client/api"
	"github.com/foldr/foldr-go/internal/model"
	"github.com/foldr/foldr-go/internal/offline"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    api.Session
		wantErr error
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/auth/login", r.URL.Path)
				var req model.LoginRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "a@b.com", req.Email)
				writeJSON(w, http.StatusOK, model.AuthResponse{Success: true, UserID: "u1", Token: "tok"})
			},
			want: api.Session{UserID: "u1", Token: "tok"},
		},
		{
			name: "bad credentials",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid email or password"})
			},
			wantErr: api.ErrAuth,
		},
		{
			name: "offline envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusServiceUnavailable, model.ErrorResponse{Error: "Offline", Offline: true})
			},
			wantErr: api.ErrOffline,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got, err := api.New(srv.URL).Login(context.Background(), "a@b.com", "secret1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccountRequests(t *testing.T) {
	bodies := map[string]map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies[r.URL.Path] = body
		if r.URL.Path == "/api/auth/signup" {
			writeJSON(w, http.StatusOK, model.AuthResponse{Success: true, UserID: "u2", Token: "tok2"})
			return
		}
		writeJSON(w, http.StatusOK, model.StatusResponse{Success: true})
	}))
	defer srv.Close()
	c := api.New(srv.URL)
	ctx := context.Background()

	sess, err := c.Signup(ctx, "a@b.com", "secret1", "inv")
	require.NoError(t, err)
	assert.Equal(t, api.Session{UserID: "u2", Token: "tok2"}, sess)
	require.NoError(t, c.ChangePassword(ctx, "a@b.com", "secret1", "secret2"))
	require.NoError(t, c.ResetPassword(ctx, "a@b.com", "secret3", "inv"))

	assert.Equal(t, map[string]map[string]string{
		"/api/auth/signup":          {"email": "a@b.com", "password": "secret1", "inviteCode": "inv"},
		"/api/auth/change-password": {"email": "a@b.com", "currentPassword": "secret1", "newPassword": "secret2"},
		"/api/auth/reset-password":  {"email": "a@b.com", "newPassword": "secret3", "inviteCode": "inv"},
	}, bodies)
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "Email already registered"})
	}))
	defer srv.Close()

	_, err := api.New(srv.URL).Signup(context.Background(), "a@b.com", "secret1", "code")

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Email already registered", apiErr.Message)
	assert.NotErrorIs(t, err, api.ErrAuth)
	assert.NotErrorIs(t, err, api.ErrOffline)
}

func TestErrorIs(t *testing.T) {
	assert.ErrorIs(t, &api.Error{Status: 401}, api.ErrAuth)
	assert.ErrorIs(t, &api.Error{Status: 403}, api.ErrAuth)
	assert.ErrorIs(t, &api.Error{Status: 404}, api.ErrNotFound)
	assert.False(t, errors.Is(&api.Error{Status: 500}, api.ErrAuth))
}

func TestPullSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true, "trips": `[{"id":"t1"}]`, "blocks": "[]", "todos": "[]",
			"packingItems": "[]", "expenses": "[]", "settings": nil,
		})
	}))
	defer srv.Close()

	resp, err := api.New(srv.URL).Pull(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"t1"}]`, resp.Trips)
	assert.Nil(t, resp.Settings)
}

func TestDeleteAndPush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sync/delete":
			var req model.DeleteRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"t1"}, req.Trips)
			writeJSON(w, http.StatusOK, model.StatusResponse{Success: true})
		case "/api/sync/push":
			writeJSON(w, http.StatusOK, model.PushResponse{Success: true, Skipped: 2})
		}
	}))
	defer srv.Close()

	c := api.New(srv.URL)
	require.NoError(t, c.Delete(context.Background(), "tok", model.DeleteRequest{Trips: []string{"t1"}}))

	resp, err := c.Push(context.Background(), "tok", model.PushRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Skipped)
}

func TestUnreachableServerIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := api.New(addr).Delete(context.Background(), "tok", model.DeleteRequest{Trips: []string{"x"}})
	assert.ErrorIs(t, err, api.ErrOffline)
}

func TestTimeoutIsOffline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := api.New(srv.URL, api.WithTimeout(50*time.Millisecond)).Pull(context.Background(), "tok")
	assert.ErrorIs(t, err, api.ErrOffline)
}

func TestThroughOfflineWorker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close()

	w, err := offline.New(offline.Options{Origin: origin, Version: "v1"})
	require.NoError(t, err)

	_, err = api.New(srv.URL, api.WithTransport(w)).Pull(context.Background(), "tok")
	assert.ErrorIs(t, err, api.ErrOffline)
}
