package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewWithHTTPClient(srv.URL, srv.Client(), zap.NewNop()), srv
}

func TestGetUserResolvesPrincipal(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/teacher@school.no", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "$select=")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":                "t-1",
			"displayName":       "Terje Teacher",
			"userPrincipalName": "teacher@school.no",
			"companyName":       "North School",
		})
	}))
	defer srv.Close()

	user, err := client.GetUser(context.Background(), "teacher@school.no")
	require.NoError(t, err)
	assert.Equal(t, "t-1", user.ID)
	assert.Equal(t, "North School", user.CompanyName)
}

func TestGetUserNotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := client.GetUser(context.Background(), "nobody@school.no")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound.Code))
}

func TestSearchUsersInGroupSetsConsistencyHeader(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eventual", r.Header.Get("ConsistencyLevel"))
		assert.Contains(t, r.URL.RawQuery, "%24search=")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]string{{"id": "t-1", "displayName": "Terje Teacher"}},
		})
	}))
	defer srv.Close()

	users, err := client.SearchUsersInGroup(context.Background(), "Terje", "group-1")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "t-1", users[0].ID)
}

func TestAddGroupOwnerSkipsExistingOwner(t *testing.T) {
	posts := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"value": []map[string]string{{"id": "s-1"}},
			})
		case r.Method == http.MethodPost:
			posts++
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	require.NoError(t, client.AddGroupOwner(context.Background(), "team-1", "s-1"))
	assert.Zero(t, posts)
}

func TestAddGroupOwnerPostsReference(t *testing.T) {
	var body map[string]string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": []map[string]string{}})
		case http.MethodPost:
			assert.Equal(t, "/groups/team-1/owners/$ref", r.URL.Path)
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	require.NoError(t, client.AddGroupOwner(context.Background(), "team-1", "s-1"))
	assert.Contains(t, body["@odata.id"], "/users/s-1")
}

func TestRemoveGroupOwnerDeletesReference(t *testing.T) {
	var path string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, client.RemoveGroupOwner(context.Background(), "team-1", "s-1"))
	assert.Equal(t, "/groups/team-1/owners/s-1/$ref", path)
}

func TestMutationFailureIsReconciliationError(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := client.RemoveGroupMember(context.Background(), "team-1", "s-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrReconciliation.Code))
}
