package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/atlas"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
)

func atlasTools() []Tool {
	return []Tool{
		atlasListProjectsTool(),
		atlasListClustersTool(),
		atlasCreateClusterTool(),
		atlasConnectClusterTool(),
		atlasListDBUsersTool(),
		atlasCreateDBUserTool(),
		atlasListAccessListsTool(),
		atlasCreateAccessListTool(),
	}
}

func atlasListProjectsTool() Tool {
	return newTool("atlas-list-projects", CategoryAtlas, OpMeta, "List Atlas projects visible to the configured API credentials",
		objectSchema(map[string]*jsonschema.Schema{}),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			projects, err := rc.Session.Atlas.ListProjects(ctx)
			if err != nil {
				return Result{}, err
			}
			rendered, err := renderJSON(projects)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

func atlasListClustersTool() Tool {
	return newTool("atlas-list-clusters", CategoryAtlas, OpMeta, "List clusters in an Atlas project",
		objectSchema(map[string]*jsonschema.Schema{
			"projectId": stringProp("Atlas project (group) id"),
		}, "projectId"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				ProjectID string `bson:"projectId"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode atlas-list-clusters arguments: %w", err)
			}
			clusters, err := rc.Session.Atlas.ListClusters(ctx, args.ProjectID)
			if err != nil {
				return Result{}, err
			}
			rendered, err := renderJSON(clusters)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

func atlasCreateClusterTool() Tool {
	return newTool("atlas-create-cluster", CategoryAtlas, OpCreate, "Create a new Atlas cluster",
		objectSchema(map[string]*jsonschema.Schema{
			"projectId":    stringProp("Atlas project (group) id"),
			"name":         stringProp("Cluster name"),
			"providerName": stringProp("Cloud provider (AWS, GCP, AZURE)"),
			"instanceSize": stringProp("Instance size tier, e.g. M10"),
			"region":       stringProp("Provider region name"),
		}, "projectId", "name", "providerName", "instanceSize", "region"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				ProjectID    string `bson:"projectId"`
				Name         string `bson:"name"`
				ProviderName string `bson:"providerName"`
				InstanceSize string `bson:"instanceSize"`
				Region       string `bson:"region"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode atlas-create-cluster arguments: %w", err)
			}
			cluster, err := rc.Session.Atlas.CreateCluster(ctx, args.ProjectID, atlas.ClusterSpec{
				Name:         args.Name,
				ProviderName: args.ProviderName,
				InstanceSize: args.InstanceSize,
				Region:       args.Region,
			})
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("creating cluster %s (state=%s)", cluster.Name, cluster.StateName)}, nil
		})
}

func atlasListDBUsersTool() Tool {
	return newTool("atlas-list-db-users", CategoryAtlas, OpMeta, "List database users in an Atlas project",
		objectSchema(map[string]*jsonschema.Schema{
			"projectId": stringProp("Atlas project (group) id"),
		}, "projectId"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				ProjectID string `bson:"projectId"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode atlas-list-db-users arguments: %w", err)
			}
			users, err := rc.Session.Atlas.ListDBUsers(ctx, args.ProjectID)
			if err != nil {
				return Result{}, err
			}
			rendered, err := renderJSON(users)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

func atlasCreateDBUserTool() Tool {
	return newTool("atlas-create-db-user", CategoryAtlas, OpCreate, "Create a database user scoped to an Atlas project",
		objectSchema(map[string]*jsonschema.Schema{
			"projectId": stringProp("Atlas project (group) id"),
			"readOnly":  boolProp("Grant readAnyDatabase instead of readWriteAnyDatabase"),
			"ttlHours":  intProp("Hours until the user expires"),
		}, "projectId"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				ProjectID string `bson:"projectId"`
				ReadOnly  bool   `bson:"readOnly"`
				TTLHours  int64  `bson:"ttlHours"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode atlas-create-db-user arguments: %w", err)
			}
			ttl := 12 * time.Hour
			if args.TTLHours > 0 {
				ttl = time.Duration(args.TTLHours) * time.Hour
			}
			user, err := rc.Session.Atlas.CreateTemporaryDBUser(ctx, args.ProjectID, "", args.ReadOnly, ttl)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("created user %s, expires %s", user.Username, user.ExpiresAt.Format(time.RFC3339))}, nil
		})
}

func atlasListAccessListsTool() Tool {
	return newTool("atlas-list-access-lists", CategoryAtlas, OpMeta, "List IP access list entries for an Atlas project",
		objectSchema(map[string]*jsonschema.Schema{
			"projectId": stringProp("Atlas project (group) id"),
		}, "projectId"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				ProjectID string `bson:"projectId"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode atlas-list-access-lists arguments: %w", err)
			}
			entries, err := rc.Session.Atlas.ListAccessListEntries(ctx, args.ProjectID)
			if err != nil {
				return Result{}, err
			}
			rendered, err := renderJSON(entries)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: rendered}, nil
		})
}

func atlasCreateAccessListTool() Tool {
	return newTool("atlas-create-access-list", CategoryAtlas, OpCreate, "Add an entry to an Atlas project's IP access list",
		objectSchema(map[string]*jsonschema.Schema{
			"projectId": stringProp("Atlas project (group) id"),
			"cidrBlock": stringProp("CIDR block or single IP to allow"),
		}, "projectId", "cidrBlock"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				ProjectID string `bson:"projectId"`
				CIDRBlock string `bson:"cidrBlock"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode atlas-create-access-list arguments: %w", err)
			}
			if err := rc.Session.Atlas.EnsureAccessListEntry(ctx, args.ProjectID, args.CIDRBlock); err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("access list entry %s ensured for project %s", args.CIDRBlock, args.ProjectID)}, nil
		})
}

// atlasConnectAttempts tracks the in-flight retry loop for each session's
// atlas-connect-cluster call, since connection.Manager's own "connecting"
// state only applies to the OIDC handshake, not this tool's external
// provisioning wait. cancel lets a connect call targeting a different
// cluster abort the one in flight rather than queue behind it.
var (
	atlasConnectMu       sync.Mutex
	atlasConnectAttempts = map[string]*atlasConnectAttempt{}
)

type atlasConnectAttempt struct {
	projectID   string
	clusterName string
	cancel      context.CancelFunc
}

type atlasConnectArgs struct {
	ProjectID   string `bson:"projectId"`
	ClusterName string `bson:"clusterName"`
	ReadOnly    bool   `bson:"readOnly"`
}

func atlasConnectClusterTool() Tool {
	return newTool("atlas-connect-cluster", CategoryAtlas, OpConnect, "Connect the session to an Atlas cluster, provisioning access as needed",
		objectSchema(map[string]*jsonschema.Schema{
			"projectId":   stringProp("Atlas project (group) id"),
			"clusterName": stringProp("Cluster name"),
			"readOnly":    boolProp("Provision a read-only temporary database user"),
		}, "projectId", "clusterName"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args atlasConnectArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode atlas-connect-cluster arguments: %w", err)
			}

			status := queryConnection(rc, args.ProjectID, args.ClusterName)
			switch status {
			case "connected":
				return Result{Text: "connected"}, nil
			case "connecting":
				return Result{Text: "connecting"}, nil
			case "connected-to-other-cluster":
				return Result{Text: "connected to a different cluster; disconnect first"}, nil
			}

			abortStaleAttempt(rc.Session.ID, args.ProjectID, args.ClusterName)

			attemptCtx, cancel := context.WithCancel(context.Background())
			attempt := &atlasConnectAttempt{projectID: args.ProjectID, clusterName: args.ClusterName, cancel: cancel}
			atlasConnectMu.Lock()
			atlasConnectAttempts[rc.Session.ID] = attempt
			atlasConnectMu.Unlock()

			go runAtlasConnect(rc, args, attemptCtx, attempt)

			return Result{Text: "connecting"}, nil
		})
}

// queryConnection reports the session's relationship to the given Atlas
// cluster per the connect flow's polling contract. An in-flight attempt
// only counts as "connecting" for the cluster it actually targets — a
// concurrent request for a different cluster falls through so the caller
// aborts it and starts a fresh attempt, per the drift-abort requirement.
func queryConnection(rc *RequestContext, projectID, clusterName string) string {
	atlasConnectMu.Lock()
	attempt, attempting := atlasConnectAttempts[rc.Session.ID]
	atlasConnectMu.Unlock()

	ref := rc.Session.ConnectedAtlasCluster()
	state := rc.Session.Conn.CurrentState()

	if ref != nil && ref.ProjectID == projectID && ref.ClusterName == clusterName {
		if state.State == connection.StateConnected {
			return "connected"
		}
		return "connecting"
	}
	if attempting && attempt.projectID == projectID && attempt.clusterName == clusterName {
		return "connecting"
	}
	if ref != nil {
		return "connected-to-other-cluster"
	}
	return "disconnected"
}

// abortStaleAttempt cancels any in-flight atlas-connect-cluster attempt
// for this session that targets a cluster other than the one just
// requested, so the second request aborts the first instead of being
// silently absorbed by it.
func abortStaleAttempt(sessionID, projectID, clusterName string) {
	atlasConnectMu.Lock()
	existing, ok := atlasConnectAttempts[sessionID]
	atlasConnectMu.Unlock()
	if ok && (existing.projectID != projectID || existing.clusterName != clusterName) {
		existing.cancel()
	}
}

// runAtlasConnect implements the external coordination described for the
// cluster connect flow: ensure access, provision a temporary user, embed
// the credential, and retry the connect every 500ms for up to five
// minutes, aborting if the session moves onto a different cluster or if
// self is superseded by a later atlas-connect-cluster call.
func runAtlasConnect(rc *RequestContext, args atlasConnectArgs, parent context.Context, self *atlasConnectAttempt) {
	defer func() {
		atlasConnectMu.Lock()
		if atlasConnectAttempts[rc.Session.ID] == self {
			delete(atlasConnectAttempts, rc.Session.ID)
		}
		atlasConnectMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(parent, 5*time.Minute)
	defer cancel()

	publicIP, err := discoverPublicIP(ctx)
	if err == nil && publicIP != "" {
		_ = rc.Session.Atlas.EnsureAccessListEntry(ctx, args.ProjectID, publicIP+"/32")
	}

	connStr, err := rc.Session.Atlas.GetClusterConnectionString(ctx, args.ProjectID, args.ClusterName)
	if err != nil {
		return
	}

	user, err := rc.Session.Atlas.CreateTemporaryDBUser(ctx, args.ProjectID, args.ClusterName, args.ReadOnly, 12*time.Hour)
	if err != nil {
		return
	}

	credentialed := embedCredential(connStr, user.Username, user.Username)
	atlasRef := &connection.AtlasRef{ProjectID: args.ProjectID, ClusterName: args.ClusterName}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rc.Session.Atlas.DeleteDBUser(context.Background(), args.ProjectID, user.Username)
			return
		case <-ticker.C:
			if cur := rc.Session.ConnectedAtlasCluster(); cur != nil && (cur.ProjectID != args.ProjectID || cur.ClusterName != args.ClusterName) {
				return
			}
			if _, err := rc.Session.ConnectToMongoDB(ctx, connection.Settings{ConnectionString: credentialed, Atlas: atlasRef}); err == nil {
				return
			}
		}
	}
}

// embedCredential inserts username/password into a mongodb+srv connection
// string's authority component.
func embedCredential(uri, username, password string) string {
	const scheme = "mongodb+srv://"
	if !strings.HasPrefix(uri, scheme) {
		return uri
	}
	rest := strings.TrimPrefix(uri, scheme)
	return fmt.Sprintf("%s%s:%s@%s", scheme, username, password, rest)
}

func discoverPublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.ipify.org", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
