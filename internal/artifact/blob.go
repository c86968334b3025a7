package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobConfig locates a container in Azure Blob Storage. ConnectionString
// takes precedence over AccountURL; with only AccountURL set, the default
// Azure credential chain is used.
type BlobConfig struct {
	Container        string
	Prefix           string
	AccountURL       string
	ConnectionString string
}

// blobAPI is the subset of the blob client used by BlobStore.
type blobAPI interface {
	upload(ctx context.Context, container, name string, data []byte) error
	download(ctx context.Context, container, name string) ([]byte, error)
	exists(ctx context.Context, container, name string) (bool, error)
	createContainer(ctx context.Context, container string) error
}

// BlobStore implements Store over an Azure Blob Storage container.
type BlobStore struct {
	api       blobAPI
	container string
	prefix    string
}

// NewBlobStore connects to the configured container.
func NewBlobStore(cfg BlobConfig) (*BlobStore, error) {
	if cfg.Container == "" {
		return nil, errors.New("blob store: container is required")
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountURL != "":
		var cred azcore.TokenCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("blob store: default credential: %w", err)
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	default:
		return nil, errors.New("blob store: account URL or connection string is required")
	}
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return newBlobStore(&azureBlobs{client: client}, cfg), nil
}

func newBlobStore(api blobAPI, cfg BlobConfig) *BlobStore {
	return &BlobStore{api: api, container: cfg.Container, prefix: cfg.Prefix}
}

func (s *BlobStore) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// EnsureContainer creates the container when it does not exist.
func (s *BlobStore) EnsureContainer(ctx context.Context) error {
	if err := s.api.createContainer(ctx, s.container); err != nil {
		return fmt.Errorf("blob store: create container %s: %w", s.container, err)
	}
	return nil
}

func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	slog.Debug("Uploading artifact", "container", s.container, "blob", s.name(key), "bytes", len(data))
	if err := s.api.upload(ctx, s.container, s.name(key), data); err != nil {
		return fmt.Errorf("blob store: upload %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := s.api.download(ctx, s.container, s.name(key))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("blob store: download %s: %w", key, err)
	}
	return data, nil
}

func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	ok, err := s.api.exists(ctx, s.container, s.name(key))
	if err != nil {
		return false, fmt.Errorf("blob store: stat %s: %w", key, err)
	}
	return ok, nil
}

// azureBlobs adapts *azblob.Client to blobAPI.
type azureBlobs struct {
	client *azblob.Client
}

func (a *azureBlobs) upload(ctx context.Context, container, name string, data []byte) error {
	_, err := a.client.UploadBuffer(ctx, container, name, data, nil)
	return err
}

func (a *azureBlobs) download(ctx context.Context, container, name string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *azureBlobs) exists(ctx context.Context, container, name string) (bool, error) {
	_, err := a.client.ServiceClient().NewContainerClient(container).NewBlobClient(name).GetProperties(ctx, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (a *azureBlobs) createContainer(ctx context.Context, container string) error {
	_, err := a.client.CreateContainer(ctx, container, nil)
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil
	}
	return err
}
