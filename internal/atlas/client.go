// Package atlas provides a narrow typed client over the Atlas
// Administration API: cluster connection strings, project access lists,
// and short-lived database user provisioning. The full API surface is
// out of scope; only what the Atlas-category tools and the cluster
// connect flow need is implemented.
package atlas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Client is the narrow interface the tool layer and connect flow depend
// on, so tests substitute a fake instead of talking to the real Atlas
// API.
type Client interface {
	ListProjects(ctx context.Context) ([]Project, error)
	ListClusters(ctx context.Context, projectID string) ([]Cluster, error)
	CreateCluster(ctx context.Context, projectID string, spec ClusterSpec) (Cluster, error)
	GetClusterConnectionString(ctx context.Context, projectID, clusterName string) (string, error)

	EnsureAccessListEntry(ctx context.Context, projectID, cidrOrIP string) error
	ListAccessListEntries(ctx context.Context, projectID string) ([]AccessListEntry, error)

	CreateTemporaryDBUser(ctx context.Context, projectID, clusterName string, readOnly bool, ttl time.Duration) (DBUser, error)
	DeleteDBUser(ctx context.Context, projectID, username string) error
	ListDBUsers(ctx context.Context, projectID string) ([]DBUser, error)

	// Close releases the client's pooled connections. Safe to call on a
	// nil Client only if the caller nil-checks first; the Atlas client is
	// optional and Session.Close does that check.
	Close() error
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Cluster struct {
	Name             string `json:"name"`
	ProjectID        string `json:"groupId"`
	StateName        string `json:"stateName"`
	MongoDBVersion   string `json:"mongoDBVersion"`
	ConnectionString string `json:"-"`
}

type ClusterSpec struct {
	Name         string `json:"name"`
	ProviderName string `json:"providerName"`
	InstanceSize string `json:"instanceSizeName"`
	Region       string `json:"regionName"`
}

type AccessListEntry struct {
	CIDRBlock string `json:"cidrBlock"`
	Comment   string `json:"comment,omitempty"`
}

type DBUser struct {
	Username  string    `json:"username"`
	ProjectID string    `json:"groupId"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"deleteAfterDate,omitempty"`
}

// httpClient is the real Client implementation, backed by an OAuth2
// client-credentials token source so the caller never handles raw
// secrets beyond the initial client ID/secret pair.
type httpClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client authenticated via OAuth2 client credentials
// against baseURL (normally https://cloud.mongodb.com/api/atlas/v2).
func NewClient(baseURL, clientID, clientSecret, tokenURL string) Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &httpClient{
		baseURL:    baseURL,
		httpClient: cfg.Client(context.Background()),
	}
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build atlas request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.atlas.2024-08-05+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("atlas request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("atlas API returned status %d: %s", resp.StatusCode, string(msg))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *httpClient) ListProjects(ctx context.Context) ([]Project, error) {
	var result struct {
		Results []Project `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

func (c *httpClient) ListClusters(ctx context.Context, projectID string) ([]Cluster, error) {
	var result struct {
		Results []Cluster `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%s/clusters", projectID), nil, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

func (c *httpClient) CreateCluster(ctx context.Context, projectID string, spec ClusterSpec) (Cluster, error) {
	var cluster Cluster
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/clusters", projectID), spec, &cluster)
	return cluster, err
}

func (c *httpClient) GetClusterConnectionString(ctx context.Context, projectID, clusterName string) (string, error) {
	var result struct {
		ConnectionStrings struct {
			StandardSrv string `json:"standardSrv"`
		} `json:"connectionStrings"`
	}
	path := fmt.Sprintf("/groups/%s/clusters/%s", projectID, clusterName)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	return result.ConnectionStrings.StandardSrv, nil
}

func (c *httpClient) EnsureAccessListEntry(ctx context.Context, projectID, cidrOrIP string) error {
	entries, err := c.ListAccessListEntries(ctx, projectID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.CIDRBlock == cidrOrIP {
			return nil
		}
	}
	body := []AccessListEntry{{CIDRBlock: cidrOrIP, Comment: "added by mongodb-mcp-server"}}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/accessList", projectID), body, nil)
}

func (c *httpClient) ListAccessListEntries(ctx context.Context, projectID string) ([]AccessListEntry, error) {
	var result struct {
		Results []AccessListEntry `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%s/accessList", projectID), nil, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

func (c *httpClient) CreateTemporaryDBUser(ctx context.Context, projectID, clusterName string, readOnly bool, ttl time.Duration) (DBUser, error) {
	role := "readWriteAnyDatabase"
	if readOnly {
		role = "readAnyDatabase"
	}
	user := DBUser{
		Username:  fmt.Sprintf("mcp-temp-%d", time.Now().UnixNano()),
		ProjectID: projectID,
		Roles:     []string{role},
		ExpiresAt: time.Now().Add(ttl),
	}
	var created DBUser
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/databaseUsers", projectID), user, &created)
	return created, err
}

func (c *httpClient) DeleteDBUser(ctx context.Context, projectID, username string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/groups/%s/databaseUsers/admin/%s", projectID, username), nil, nil)
}

func (c *httpClient) ListDBUsers(ctx context.Context, projectID string) ([]DBUser, error) {
	var result struct {
		Results []DBUser `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%s/databaseUsers", projectID), nil, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// Close idles out the client-credentials token source's pooled
// connections. The Atlas API client has no server-side session to tear
// down, unlike the MongoDB driver handle.
func (c *httpClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
