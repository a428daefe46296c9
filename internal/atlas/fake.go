package atlas

import (
	"context"
	"fmt"
	"time"
)

// FakeClient is an in-memory Client for tests that exercise the cluster
// connect flow and Atlas-category tools without a real Atlas project.
type FakeClient struct {
	Projects    []Project
	Clusters    map[string][]Cluster // by project id
	AccessLists map[string][]AccessListEntry
	DBUsers     map[string][]DBUser
	ConnStrings map[string]string // "projectID/clusterName" -> srv string
	Closed      bool
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Clusters:    map[string][]Cluster{},
		AccessLists: map[string][]AccessListEntry{},
		DBUsers:     map[string][]DBUser{},
		ConnStrings: map[string]string{},
	}
}

func (f *FakeClient) ListProjects(ctx context.Context) ([]Project, error) {
	return f.Projects, nil
}

func (f *FakeClient) ListClusters(ctx context.Context, projectID string) ([]Cluster, error) {
	return f.Clusters[projectID], nil
}

func (f *FakeClient) CreateCluster(ctx context.Context, projectID string, spec ClusterSpec) (Cluster, error) {
	cluster := Cluster{Name: spec.Name, ProjectID: projectID, StateName: "CREATING"}
	f.Clusters[projectID] = append(f.Clusters[projectID], cluster)
	return cluster, nil
}

func (f *FakeClient) GetClusterConnectionString(ctx context.Context, projectID, clusterName string) (string, error) {
	s, ok := f.ConnStrings[projectID+"/"+clusterName]
	if !ok {
		return "", fmt.Errorf("cluster %s not found in project %s", clusterName, projectID)
	}
	return s, nil
}

func (f *FakeClient) EnsureAccessListEntry(ctx context.Context, projectID, cidrOrIP string) error {
	for _, e := range f.AccessLists[projectID] {
		if e.CIDRBlock == cidrOrIP {
			return nil
		}
	}
	f.AccessLists[projectID] = append(f.AccessLists[projectID], AccessListEntry{CIDRBlock: cidrOrIP})
	return nil
}

func (f *FakeClient) ListAccessListEntries(ctx context.Context, projectID string) ([]AccessListEntry, error) {
	return f.AccessLists[projectID], nil
}

func (f *FakeClient) CreateTemporaryDBUser(ctx context.Context, projectID, clusterName string, readOnly bool, ttl time.Duration) (DBUser, error) {
	role := "readWriteAnyDatabase"
	if readOnly {
		role = "readAnyDatabase"
	}
	user := DBUser{Username: fmt.Sprintf("mcp-temp-%d", len(f.DBUsers[projectID])), ProjectID: projectID, Roles: []string{role}, ExpiresAt: time.Now().Add(ttl)}
	f.DBUsers[projectID] = append(f.DBUsers[projectID], user)
	return user, nil
}

func (f *FakeClient) DeleteDBUser(ctx context.Context, projectID, username string) error {
	users := f.DBUsers[projectID]
	for i, u := range users {
		if u.Username == username {
			f.DBUsers[projectID] = append(users[:i], users[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *FakeClient) ListDBUsers(ctx context.Context, projectID string) ([]DBUser, error) {
	return f.DBUsers[projectID], nil
}

func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}
