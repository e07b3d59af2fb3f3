package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

type azureTarget struct {
	client          *azblob.Client
	containerName   string
	keys            keyspace
	encryptionScope string
	name            string
}

// newAzureTarget builds an Azure Blob Storage Target from the default
// Azure credential chain.
func newAzureTarget(cfg Config) (Target, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.StorageAccount)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure blob client: %w", err)
	}

	return &azureTarget{
		client:          client,
		containerName:   cfg.ContainerName,
		keys:            newKeyspace(cfg.Prefix),
		encryptionScope: cfg.EncryptionScope,
		name:            cfg.Name,
	}, nil
}

func (t *azureTarget) Name() string { return t.name }

func (t *azureTarget) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	upload := &azblob.UploadBufferOptions{}

	if opts.ContentType != "" || opts.CacheControl != "" {
		headers := &blob.HTTPHeaders{}
		if opts.ContentType != "" {
			headers.BlobContentType = &opts.ContentType
		}
		if opts.CacheControl != "" {
			headers.BlobCacheControl = &opts.CacheControl
		}
		upload.HTTPHeaders = headers
	}
	if len(opts.Metadata) > 0 {
		m := make(map[string]*string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			v := v
			m[k] = &v
		}
		upload.Metadata = m
	}
	if t.encryptionScope != "" {
		upload.CPKScopeInfo = &blob.CPKScopeInfo{EncryptionScope: &t.encryptionScope}
	}

	if _, err := t.client.UploadBuffer(ctx, t.containerName, t.keys.full(key), data, upload); err != nil {
		return fmt.Errorf("azure UploadBuffer %q: %w", key, err)
	}
	return nil
}

func (t *azureTarget) Get(ctx context.Context, key string) ([]byte, ObjectMeta, error) {
	resp, err := t.client.DownloadStream(ctx, t.containerName, t.keys.full(key), nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ObjectMeta{}, ErrNotFound
		}
		return nil, ObjectMeta{}, fmt.Errorf("azure DownloadStream %q: %w", key, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("azure read %q: %w", key, err)
	}

	meta := ObjectMeta{Size: int64(buf.Len())}
	if resp.ETag != nil {
		meta.ETag = string(*resp.ETag)
	}
	return buf.Bytes(), meta, nil
}

func (t *azureTarget) Head(ctx context.Context, key string) (ObjectMeta, error) {
	blobClient := t.client.ServiceClient().NewContainerClient(t.containerName).NewBlobClient(t.keys.full(key))
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return ObjectMeta{}, ErrNotFound
		}
		return ObjectMeta{}, fmt.Errorf("azure GetProperties %q: %w", key, err)
	}

	meta := ObjectMeta{}
	if props.ETag != nil {
		meta.ETag = string(*props.ETag)
	}
	if props.ContentLength != nil {
		meta.Size = *props.ContentLength
	}
	return meta, nil
}

func (t *azureTarget) Delete(ctx context.Context, key string) error {
	_, err := t.client.DeleteBlob(ctx, t.containerName, t.keys.full(key), nil)
	if err != nil && !isAzureNotFound(err) {
		return fmt.Errorf("azure DeleteBlob %q: %w", key, err)
	}
	return nil
}

func (t *azureTarget) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	full := t.keys.full(prefix)
	pager := t.client.NewListBlobsFlatPager(t.containerName, &container.ListBlobsFlatOptions{
		Prefix: &full,
	})

	var results []ObjectInfo
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure ListBlobsFlat prefix %q: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			info := ObjectInfo{Key: t.keys.logical(*item.Name)}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				info.Size = *item.Properties.ContentLength
			}
			results = append(results, info)
		}
	}
	return results, nil
}

func isAzureNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
