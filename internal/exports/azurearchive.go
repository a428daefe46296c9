package exports

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// Archiver uploads a completed export's file to durable storage once it
// reaches StatusReady, so the export survives past its local expiry.
// Archival is optional and best-effort: a failure is logged by the
// caller, never surfaced as an export failure.
type Archiver interface {
	Archive(ctx context.Context, job Job) error
}

// AzureArchiver uploads export files to an Azure Blob Storage container.
type AzureArchiver struct {
	client    *azblob.Client
	container string
}

// AzureArchiverConfig supports either full-connection-string or
// account-name-plus-key authentication, matching the two ways Azure
// Blob credentials are typically distributed to an operator.
type AzureArchiverConfig struct {
	ConnectionString string
	AccountName      string
	AccountKey       string
	Container        string
}

func NewAzureArchiver(cfg AzureArchiverConfig) (*AzureArchiver, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("azure archiver: container name is required")
	}

	var client *azblob.Client
	var err error
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountName != "" && cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err == nil {
			serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
			client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		}
	default:
		return nil, fmt.Errorf("azure archiver: either a connection string or account name + key is required")
	}
	if err != nil {
		return nil, fmt.Errorf("azure archiver: create client: %w", err)
	}

	return &AzureArchiver{client: client, container: cfg.Container}, nil
}

// Archive uploads the export's file under its export id.
func (a *AzureArchiver) Archive(ctx context.Context, job Job) error {
	data, err := os.ReadFile(job.AbsolutePath)
	if err != nil {
		return fmt.Errorf("read export file for archival: %w", err)
	}

	contentType := "application/json"
	blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlockBlobClient(job.ExportID + "/" + job.ExportName)
	_, err = blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("upload export blob: %w", err)
	}
	return nil
}

// archiveWithTimeout bounds how long a single archive attempt can run,
// so a slow or unreachable storage account doesn't stall the export's
// transition to ready and its notification, which wait on archival.
func archiveWithTimeout(ctx context.Context, archiver Archiver, job Job, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return archiver.Archive(ctx, job)
}
