package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/utils/types"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrCacheMiss is returned when no fresh entry exists for a product.
var ErrCacheMiss = errors.New("cache miss")

type MinIOClient struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// CachedResult is the object stored per product and site.
type CachedResult struct {
	SiteID      string          `json:"siteId"`
	ProductName string          `json:"productName"`
	Candidates  []types.Listing `json:"lowestPrices"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (c CachedResult) Fresh(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 || c.Timestamp.IsZero() {
		return false
	}
	return now.Sub(c.Timestamp) < ttl
}

func (c CachedResult) ProductResult() types.ProductResult {
	candidates := c.Candidates
	if candidates == nil {
		candidates = []types.Listing{}
	}
	return types.ProductResult{ProductName: c.ProductName, Candidates: candidates}
}

// ResultKey hashes the normalised product name so names with any characters
// map to a safe object key.
func ResultKey(siteID, productName string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(productName), " "))
	hash := fmt.Sprintf("%x", md5.Sum([]byte(norm)))
	return path.Join("results", siteID, hash+".json")
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOSecure,
		},
	)
	if err != nil {
		return nil, err
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinIOClient{client: client, bucket: bucket, ttl: cfg.CacheTTL}, nil
}

// PutResult stores a successful product result and returns its key.
func (m *MinIOClient) PutResult(ctx context.Context, siteID string, result types.ProductResult) (string, error) {
	if result.Err != nil || result.Error != "" {
		return "", fmt.Errorf("refusing to cache failed result for %q", result.ProductName)
	}
	key := ResultKey(siteID, result.ProductName)
	obj := CachedResult{
		SiteID:      siteID,
		ProductName: result.ProductName,
		Candidates:  result.Candidates,
		Timestamp:   time.Now(),
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", err
	}
	return key, nil
}

// GetResult returns the cached result for productName, or ErrCacheMiss when
// there is none, it is stale, or it cannot be decoded.
func (m *MinIOClient) GetResult(ctx context.Context, siteID, productName string) (types.ProductResult, error) {
	key := ResultKey(siteID, productName)
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return types.ProductResult{}, missOrErr(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return types.ProductResult{}, missOrErr(err)
	}
	return decodeFresh(data, productName, time.Now(), m.ttl)
}

func decodeFresh(data []byte, productName string, now time.Time, ttl time.Duration) (types.ProductResult, error) {
	var cached CachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		return types.ProductResult{}, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	if !cached.Fresh(now, ttl) {
		return types.ProductResult{}, fmt.Errorf("%w: stale entry from %s", ErrCacheMiss, cached.Timestamp.Format(time.RFC3339))
	}
	res := cached.ProductResult()
	// the caller's spelling wins; the hash ignores case and spacing
	res.ProductName = productName
	return res, nil
}

func missOrErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrCacheMiss
	}
	return err
}
