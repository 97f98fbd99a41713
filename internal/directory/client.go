package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/vikarapp/vikar-api/internal/models"
	"github.com/vikarapp/vikar-api/pkg/config"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

const userSelect = "id,displayName,givenName,surname,userPrincipalName,companyName,officeLocation,preferredLanguage,mail,jobTitle,department,mobilePhone,businessPhones"

// Client wraps the external identity directory. It is stateless apart from
// the reusable service-credential token source.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a directory client authenticated with a client-credential
// exchange against the configured token endpoint.
func New(cfg config.DirectoryConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{cfg.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	httpClient := cc.Client(context.Background())
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// NewWithHTTPClient builds a client around a caller-supplied HTTP client.
// Used by tests and by deployments that terminate auth elsewhere.
func NewWithHTTPClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

// listResponse is the directory's collection envelope.
type listResponse[T any] struct {
	Value []T `json:"value"`
}

// GetUser resolves a principal by address or object id.
func (c *Client) GetUser(ctx context.Context, upn string) (*models.DirectoryUser, error) {
	if upn == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot look up a user without an address")
	}

	var user models.DirectoryUser
	path := fmt.Sprintf("/users/%s?$select=%s", url.PathEscape(upn), userSelect)
	if err := c.get(ctx, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsersInGroup searches principals by display name within a scoped
// population group.
func (c *Client) SearchUsersInGroup(ctx context.Context, searchTerm, groupID string) ([]models.DirectoryUser, error) {
	if searchTerm == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot search for users without a search term")
	}
	if groupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot search for users without a group id")
	}

	query := url.Values{}
	query.Set("$search", fmt.Sprintf("%q", "displayName:"+searchTerm))
	query.Set("$select", "id,displayName,jobTitle,officeLocation,userPrincipalName,companyName")
	query.Set("$orderby", "displayName")

	var out listResponse[models.DirectoryUser]
	path := fmt.Sprintf("/groups/%s/members?%s", url.PathEscape(groupID), query.Encode())
	if err := c.get(ctx, path, map[string]string{"ConsistencyLevel": "eventual"}, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetOwnedObjects returns the resources a principal owns.
func (c *Client) GetOwnedObjects(ctx context.Context, upn string) ([]models.DirectoryObject, error) {
	if upn == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot look up owned objects without an address")
	}

	var out listResponse[models.DirectoryObject]
	path := fmt.Sprintf("/users/%s/ownedObjects?$select=id,displayName,mail,description", url.PathEscape(upn))
	if err := c.get(ctx, path, map[string]string{"ConsistencyLevel": "eventual"}, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetGroupOwners returns the current owners of a group.
func (c *Client) GetGroupOwners(ctx context.Context, groupID string) ([]models.DirectoryUser, error) {
	if groupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot look up owners without a group id")
	}

	var out listResponse[models.DirectoryUser]
	if err := c.get(ctx, fmt.Sprintf("/groups/%s/owners", url.PathEscape(groupID)), nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetGroupMembers returns the current members of a group.
func (c *Client) GetGroupMembers(ctx context.Context, groupID string) ([]models.DirectoryUser, error) {
	if groupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot look up members without a group id")
	}

	var out listResponse[models.DirectoryUser]
	if err := c.get(ctx, fmt.Sprintf("/groups/%s/members", url.PathEscape(groupID)), nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// AddGroupOwner grants ownership of a group. A principal that is already an
// owner is treated as success, not an error.
func (c *Client) AddGroupOwner(ctx context.Context, groupID, userID string) error {
	if groupID == "" || userID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "cannot grant ownership without group and user ids")
	}

	owners, err := c.GetGroupOwners(ctx, groupID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrReconciliation.Code, appErrors.ErrReconciliation.Status, fmt.Sprintf("the team %q could not be found", groupID))
	}
	for _, owner := range owners {
		if owner.ID == userID {
			c.logger.Debug("principal already owns group", zap.String("group_id", groupID), zap.String("user_id", userID))
			return nil
		}
	}

	body := map[string]string{"@odata.id": c.baseURL + "/users/" + url.PathEscape(userID)}
	path := fmt.Sprintf("/groups/%s/owners/$ref", url.PathEscape(groupID))
	return c.mutate(ctx, http.MethodPost, path, body)
}

// RemoveGroupOwner revokes ownership of a group. Callers check current
// ownership first to decide whether the call is needed at all.
func (c *Client) RemoveGroupOwner(ctx context.Context, groupID, userID string) error {
	if groupID == "" || userID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "cannot revoke ownership without group and user ids")
	}
	path := fmt.Sprintf("/groups/%s/owners/%s/$ref", url.PathEscape(groupID), url.PathEscape(userID))
	return c.mutate(ctx, http.MethodDelete, path, nil)
}

// RemoveGroupMember revokes membership of a group.
func (c *Client) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	if groupID == "" || userID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "cannot revoke membership without group and user ids")
	}
	path := fmt.Sprintf("/groups/%s/members/%s/$ref", url.PathEscape(groupID), url.PathEscape(userID))
	return c.mutate(ctx, http.MethodDelete, path, nil)
}

func (c *Client) get(ctx context.Context, path string, headers map[string]string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build directory request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrReconciliation.Code, appErrors.ErrReconciliation.Status, "directory request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return appErrors.Clone(appErrors.ErrNotFound, "directory object not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrReconciliation.Code, appErrors.ErrReconciliation.Status, "decode directory response")
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode directory request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build directory request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrReconciliation.Code, appErrors.ErrReconciliation.Status, "directory mutation failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Warn("directory call rejected",
		zap.Int("status", resp.StatusCode),
		zap.String("url", resp.Request.URL.Path),
		zap.ByteString("body", raw),
	)
	return appErrors.Clone(appErrors.ErrReconciliation, fmt.Sprintf("directory returned status %d", resp.StatusCode))
}
