package walrus

import "context"

// Future resolves to the result of one in-flight exchange.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any](run func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = run()
	}()
	return f
}

// Wait blocks until the exchange completes or ctx is done. The exchange
// itself is bounded by the context it was started with, so abandoning a
// future does not leak work past that context.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports when the future has resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// AsyncClient is the non-blocking facade over the same protocol logic as
// Client: every method returns immediately with a Future and any number of
// calls may be in flight at once. Request construction is shared with the
// blocking mode, so both produce identical RequestSpecs for identical
// inputs.
type AsyncClient struct {
	c *Client
}

// NewAsync validates cfg and builds an AsyncClient.
func NewAsync(cfg Config) (*AsyncClient, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &AsyncClient{c: c}, nil
}

// Async wraps an existing Client without copying its configuration.
func Async(c *Client) *AsyncClient { return &AsyncClient{c: c} }

// Client returns the underlying blocking client.
func (a *AsyncClient) Client() *Client { return a.c }

// Close releases resources held by the underlying client.
func (a *AsyncClient) Close() error { return a.c.Close() }

// StoreBlob starts a blob store and returns immediately.
func (a *AsyncClient) StoreBlob(ctx context.Context, data []byte, opts StoreOptions) *Future[*StoreResult] {
	return newFuture(func() (*StoreResult, error) { return a.c.StoreBlob(ctx, data, opts) })
}

// StoreQuilt starts a quilt store and returns immediately.
func (a *AsyncClient) StoreQuilt(ctx context.Context, files []QuiltFile, opts StoreOptions) *Future[*QuiltStoreResult] {
	return newFuture(func() (*QuiltStoreResult, error) { return a.c.StoreQuilt(ctx, files, opts) })
}

// ReadBlob starts a blob read and returns immediately.
func (a *AsyncClient) ReadBlob(ctx context.Context, blobID string) *Future[[]byte] {
	return newFuture(func() ([]byte, error) { return a.c.ReadBlob(ctx, blobID) })
}

// ReadBlobByObjectID starts an object-ID blob read and returns immediately.
func (a *AsyncClient) ReadBlobByObjectID(ctx context.Context, objectID string) *Future[[]byte] {
	return newFuture(func() ([]byte, error) { return a.c.ReadBlobByObjectID(ctx, objectID) })
}

// ReadQuiltPatch starts a quilt patch read and returns immediately.
func (a *AsyncClient) ReadQuiltPatch(ctx context.Context, patchID string) *Future[[]byte] {
	return newFuture(func() ([]byte, error) { return a.c.ReadQuiltPatch(ctx, patchID) })
}

// ReadQuiltBlob starts a name-based quilt read and returns immediately.
func (a *AsyncClient) ReadQuiltBlob(ctx context.Context, quiltID, identifier string) *Future[[]byte] {
	return newFuture(func() ([]byte, error) { return a.c.ReadQuiltBlob(ctx, quiltID, identifier) })
}

// BlobMetadata starts a metadata fetch and returns immediately.
func (a *AsyncClient) BlobMetadata(ctx context.Context, blobID string) *Future[*BlobMetadata] {
	return newFuture(func() (*BlobMetadata, error) { return a.c.BlobMetadata(ctx, blobID) })
}
