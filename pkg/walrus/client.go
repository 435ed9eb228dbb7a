package walrus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jacktea/walgo/pkg/cache"
	"github.com/jacktea/walgo/pkg/xerrors"
)

// Config configures a Client. AggregatorURL serves reads, PublisherURL
// accepts stores; both are required and must be absolute.
type Config struct {
	AggregatorURL string
	PublisherURL  string

	// HTTPClient performs the exchanges. Timeouts, TLS, pooling, and any
	// retry middleware belong to it, not to the protocol logic here.
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// CacheEntries enables a read-through cache of aggregator payloads when
	// positive. Stored content is content-addressed and immutable, so a hit
	// never serves stale bytes.
	CacheEntries int
	CacheTTL     time.Duration
}

// Client talks to a blob/quilt storage network over its aggregator and
// publisher HTTP roles. All configuration is immutable after New, so one
// instance is safe for any number of concurrent callers.
type Client struct {
	aggregator *url.URL
	publisher  *url.URL
	httpClient *http.Client
	reads      *cache.Cache
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	const op = "walrus.New"
	aggregator, err := parseBaseURL(op, "aggregator", cfg.AggregatorURL)
	if err != nil {
		return nil, err
	}
	publisher, err := parseBaseURL(op, "publisher", cfg.PublisherURL)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var reads *cache.Cache
	if cfg.CacheEntries > 0 {
		reads = cache.New(cfg.CacheEntries, cfg.CacheTTL)
	}
	return &Client{
		aggregator: aggregator,
		publisher:  publisher,
		httpClient: httpClient,
		reads:      reads,
	}, nil
}

func parseBaseURL(op, name, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &xerrors.Error{
			Kind: xerrors.KindInvalidConfig,
			Op:   op,
			Err:  fmt.Errorf("%s URL is required", name),
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &xerrors.Error{Kind: xerrors.KindInvalidConfig, Op: op, Ref: raw, Err: err}
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, &xerrors.Error{
			Kind: xerrors.KindInvalidConfig,
			Op:   op,
			Ref:  raw,
			Err:  fmt.Errorf("%s URL must be absolute", name),
		}
	}
	return u, nil
}

// AggregatorURL returns the configured aggregator base URL.
func (c *Client) AggregatorURL() string { return c.aggregator.String() }

// PublisherURL returns the configured publisher base URL.
func (c *Client) PublisherURL() string { return c.publisher.String() }

// Close releases the read cache, if one was configured.
func (c *Client) Close() error {
	if c.reads != nil {
		return c.reads.Close()
	}
	return nil
}

// do performs one request/response cycle. No retries here: a store whose
// response is lost may still have succeeded server-side, and only the caller
// can decide whether that is acceptable.
func (c *Client) do(ctx context.Context, op string, spec RequestSpec) (int, []byte, http.Header, error) {
	var body io.Reader
	if spec.Body != nil {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, body)
	if err != nil {
		return 0, nil, nil, xerrors.Wrap(xerrors.KindInternal, op, spec.URL, err)
	}
	if spec.ContentType != "" {
		req.Header.Set("Content-Type", spec.ContentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, xerrors.Wrap(xerrors.KindTransport, op, spec.URL, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, xerrors.Wrap(xerrors.KindTransport, op, spec.URL, err)
	}
	return resp.StatusCode, data, resp.Header, nil
}

// StoreBlob uploads data to the publisher and reports whether the network
// stored it fresh or found it already certified.
func (c *Client) StoreBlob(ctx context.Context, data []byte, opts StoreOptions) (*StoreResult, error) {
	const op = "walrus.StoreBlob"
	spec := BuildStoreBlobRequest(c.publisher, data, opts)
	status, body, _, err := c.do(ctx, op, spec)
	if err != nil {
		return nil, err
	}
	return ParseStoreResponse(status, body)
}

// StoreQuilt packs files into a single stored unit. The result carries one
// patch ID per input file, in input order. Quilts are never partially
// stored: any error means nothing usable was returned.
func (c *Client) StoreQuilt(ctx context.Context, files []QuiltFile, opts StoreOptions) (*QuiltStoreResult, error) {
	const op = "walrus.StoreQuilt"
	spec, err := BuildStoreQuiltRequest(c.publisher, files, opts)
	if err != nil {
		return nil, err
	}
	status, body, _, err := c.do(ctx, op, spec)
	if err != nil {
		return nil, err
	}
	submitted := make([]string, len(files))
	for i, f := range files {
		submitted[i] = f.Identifier
	}
	return ParseQuiltStoreResponse(status, body, submitted)
}

func (c *Client) read(ctx context.Context, op, cacheKey string, spec RequestSpec) ([]byte, error) {
	if c.reads != nil {
		if data, ok := c.reads.Get(cacheKey); ok {
			return data, nil
		}
	}
	status, body, _, err := c.do(ctx, op, spec)
	if err != nil {
		return nil, err
	}
	data, err := ParseReadResponse(status, body)
	if err != nil {
		return nil, err
	}
	if c.reads != nil {
		c.reads.Set(cacheKey, data)
	}
	return data, nil
}

// ReadBlob fetches a blob's bytes by its ID. The ID is placed in the URL
// path as-is; the aggregator rejects malformed IDs with a 4xx, which
// surfaces here as an HTTP error.
func (c *Client) ReadBlob(ctx context.Context, blobID string) ([]byte, error) {
	return c.read(ctx, "walrus.ReadBlob", "blob/"+blobID, BuildReadBlobRequest(c.aggregator, blobID))
}

// ReadBlobByObjectID fetches a blob's bytes by the ID of its owning object.
func (c *Client) ReadBlobByObjectID(ctx context.Context, objectID string) ([]byte, error) {
	return c.read(ctx, "walrus.ReadBlobByObjectID", "object/"+objectID, BuildReadBlobByObjectIDRequest(c.aggregator, objectID))
}

// ReadQuiltPatch fetches one file from a stored quilt by its patch ID.
func (c *Client) ReadQuiltPatch(ctx context.Context, patchID string) ([]byte, error) {
	return c.read(ctx, "walrus.ReadQuiltPatch", "patch/"+patchID, BuildReadQuiltPatchRequest(c.aggregator, patchID))
}

// ReadQuiltBlob fetches one file from a stored quilt by the quilt's ID and
// the identifier the file was stored under.
func (c *Client) ReadQuiltBlob(ctx context.Context, quiltID, identifier string) ([]byte, error) {
	return c.read(ctx, "walrus.ReadQuiltBlob", "quilt/"+quiltID+"/"+identifier, BuildReadQuiltBlobRequest(c.aggregator, quiltID, identifier))
}

// BlobMetadata fetches size, content type, and etag for a blob without
// transferring its payload.
func (c *Client) BlobMetadata(ctx context.Context, blobID string) (*BlobMetadata, error) {
	const op = "walrus.BlobMetadata"
	status, _, header, err := c.do(ctx, op, BuildBlobMetadataRequest(c.aggregator, blobID))
	if err != nil {
		return nil, err
	}
	return ParseMetadataResponse(status, header)
}
