// Package blob archives transcripts as gzip-compressed JSON documents in an
// Azure Storage container.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/klauspost/compress/gzip"
	"github.com/spigell/interview-coach/internal/storage"
	"github.com/spigell/interview-coach/internal/transcript"
)

const (
	prefix = "transcripts/"
	suffix = ".json.gz"
)

type Config struct {
	// ConnectionString takes precedence over AccountURL.
	ConnectionString string
	// AccountURL is used with the default Azure credential chain.
	AccountURL string
	Container  string
}

type Store struct {
	client    *azblob.Client
	container string
	now       func() time.Time
}

var (
	_ storage.TranscriptStore = (*Store)(nil)
	_ storage.Pinger          = (*Store)(nil)
)

// New builds the client and makes sure the container exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Container) == "" {
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
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("blob store: azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	default:
		return nil, errors.New("blob store: connection string or account url is required")
	}
	if err != nil {
		return nil, fmt.Errorf("blob store: create client: %w", err)
	}

	s := &Store{client: client, container: cfg.Container, now: time.Now}
	if _, err := client.CreateContainer(ctx, cfg.Container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("blob store: create container: %w", err)
	}
	return s, nil
}

// Ping lists at most one blob to check the account is reachable.
func (s *Store) Ping(ctx context.Context) error {
	one := int32(1)
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{MaxResults: &one})
	if _, err := pager.NextPage(ctx); err != nil {
		return fmt.Errorf("blob store: ping: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, submission transcript.Submission) (*transcript.Transcript, error) {
	tr, err := storage.NewTranscript(submission, s.now())
	if err != nil {
		return nil, err
	}

	data, err := encode(tr)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	if _, err := s.client.UploadBuffer(ctx, s.container, blobName(tr.ID), data, nil); err != nil {
		return nil, fmt.Errorf("blob store: upload transcript: %w", err)
	}
	return tr, nil
}

func (s *Store) List(ctx context.Context) ([]*transcript.Transcript, error) {
	p := prefix
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{Prefix: &p})

	var items []*transcript.Transcript
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("blob store: list transcripts: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			id, ok := idFromName(*item.Name)
			if !ok {
				continue
			}
			tr, err := s.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			items = append(items, tr)
		}
	}

	transcript.SortNewestFirst(items)
	return items, nil
}

func (s *Store) Get(ctx context.Context, id string) (*transcript.Transcript, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, storage.ErrNotFound
	}

	resp, err := s.client.DownloadStream(ctx, s.container, blobName(id), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("blob store: download transcript %q: %w", id, err)
	}
	defer resp.Body.Close()

	tr, err := decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("blob store: transcript %q: %w", id, err)
	}
	return tr, nil
}

func blobName(id string) string {
	return prefix + id + suffix
}

func idFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func encode(tr *transcript.Transcript) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(tr); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress transcript: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(r io.Reader) (*transcript.Transcript, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompress transcript: %w", err)
	}
	defer zr.Close()

	var tr transcript.Transcript
	if err := json.NewDecoder(zr).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &tr, nil
}
