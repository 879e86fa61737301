package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayursutra/therapy-portal/pkg/logging"
)

func providerStub(t *testing.T) *httptest.Server {
	t.Helper()
	users := map[string]map[string]any{
		"user_p1": {
			"id":         "user_p1",
			"first_name": "Asha",
			"last_name":  "Verma",
			"email_addresses": []map[string]string{
				{"email_address": "asha@example.com"},
			},
			"public_metadata": map[string]string{"role": "patient"},
		},
		"user_d1": {
			"id":         "user_d1",
			"first_name": "Ravi",
			"last_name":  "Nair",
			"email_addresses": []map[string]string{
				{"email_address": "ravi@example.com"},
			},
			"public_metadata": map[string]string{"role": "doctor"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		list := make([]map[string]any, 0, len(users))
		for _, u := range users {
			list = append(list, u)
		}
		_ = json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		u, ok := users[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(u)
	})
	mux.HandleFunc("PATCH /users/{id}/metadata", func(w http.ResponseWriter, r *http.Request) {
		u, ok := users[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			PublicMetadata map[string]string `json:"public_metadata"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		u["public_metadata"] = body.PublicMetadata
		_ = json.NewEncoder(w).Encode(u)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientGetUser(t *testing.T) {
	srv := providerStub(t)
	client := NewClient(srv.URL, "sk_test_123", logging.Default())

	user, err := client.GetUser(context.Background(), "user_p1")
	require.NoError(t, err)
	assert.Equal(t, "user_p1", user.ID)
	assert.Equal(t, "Asha Verma", user.Name)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, "patient", user.Role)
}

func TestClientGetUserNotFound(t *testing.T) {
	srv := providerStub(t)
	client := NewClient(srv.URL, "sk_test_123", logging.Default())

	_, err := client.GetUser(context.Background(), "user_missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestClientListUsers(t *testing.T) {
	srv := providerStub(t)
	client := NewClient(srv.URL, "sk_test_123", logging.Default())

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestClientSetRole(t *testing.T) {
	srv := providerStub(t)
	client := NewClient(srv.URL, "sk_test_123", logging.Default())

	user, err := client.SetRole(context.Background(), "user_p1", "doctor")
	require.NoError(t, err)
	assert.Equal(t, "doctor", user.Role)
}

func TestClientSetRoleRejectsUnknownRole(t *testing.T) {
	srv := providerStub(t)
	client := NewClient(srv.URL, "sk_test_123", logging.Default())

	_, err := client.SetRole(context.Background(), "user_p1", "admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
}
