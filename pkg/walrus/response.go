package walrus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jacktea/walgo/pkg/xerrors"
)

// excerptLimit caps how much of an error response body is kept.
const excerptLimit = 512

func excerpt(body []byte) string {
	if len(body) > excerptLimit {
		body = body[:excerptLimit]
	}
	return string(body)
}

func is2xx(status int) bool { return status >= 200 && status < 300 }

type storeResultWire struct {
	NewlyCreated     *NewlyCreated     `json:"newlyCreated"`
	AlreadyCertified *AlreadyCertified `json:"alreadyCertified"`
}

func (w *storeResultWire) result(op string, raw []byte) (*StoreResult, error) {
	switch {
	case w.NewlyCreated != nil && w.AlreadyCertified != nil:
		return nil, &xerrors.Error{
			Kind:    xerrors.KindUnexpectedShape,
			Op:      op,
			Excerpt: excerpt(raw),
			Err:     fmt.Errorf("both newlyCreated and alreadyCertified present"),
		}
	case w.NewlyCreated != nil:
		return &StoreResult{newlyCreated: w.NewlyCreated}, nil
	case w.AlreadyCertified != nil:
		return &StoreResult{alreadyCertified: w.AlreadyCertified}, nil
	default:
		return nil, &xerrors.Error{
			Kind:    xerrors.KindUnexpectedShape,
			Op:      op,
			Excerpt: excerpt(raw),
			Err:     fmt.Errorf("neither newlyCreated nor alreadyCertified present"),
		}
	}
}

// ParseStoreResponse interprets a publisher blob store response.
func ParseStoreResponse(status int, body []byte) (*StoreResult, error) {
	const op = "walrus.ParseStoreResponse"
	if !is2xx(status) {
		return nil, xerrors.HTTP(op, status, excerpt(body))
	}
	var wire storeResultWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &xerrors.Error{Kind: xerrors.KindUnexpectedShape, Op: op, Excerpt: excerpt(body), Err: err}
	}
	return wire.result(op, body)
}

// ParseQuiltStoreResponse interprets a publisher quilt store response.
// submitted is the ordered list of file identifiers sent in the request; the
// returned StoredQuiltBlobs list is re-matched to that order when the
// identifiers are unique, and matched positionally otherwise. A count
// mismatch is always an error.
func ParseQuiltStoreResponse(status int, body []byte, submitted []string) (*QuiltStoreResult, error) {
	const op = "walrus.ParseQuiltStoreResponse"
	if !is2xx(status) {
		return nil, xerrors.HTTP(op, status, excerpt(body))
	}
	var wire struct {
		BlobStoreResult  *storeResultWire  `json:"blobStoreResult"`
		StoredQuiltBlobs []StoredQuiltBlob `json:"storedQuiltBlobs"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &xerrors.Error{Kind: xerrors.KindUnexpectedShape, Op: op, Excerpt: excerpt(body), Err: err}
	}
	if wire.BlobStoreResult == nil {
		return nil, &xerrors.Error{
			Kind:    xerrors.KindUnexpectedShape,
			Op:      op,
			Excerpt: excerpt(body),
			Err:     fmt.Errorf("missing blobStoreResult"),
		}
	}
	outer, err := wire.BlobStoreResult.result(op, body)
	if err != nil {
		return nil, err
	}
	if len(wire.StoredQuiltBlobs) != len(submitted) {
		return nil, &xerrors.Error{
			Kind: xerrors.KindPatchCountMismatch,
			Op:   op,
			Err:  fmt.Errorf("submitted %d files, got %d patches", len(submitted), len(wire.StoredQuiltBlobs)),
		}
	}
	return &QuiltStoreResult{
		BlobStoreResult:  *outer,
		StoredQuiltBlobs: matchSubmissionOrder(wire.StoredQuiltBlobs, submitted),
	}, nil
}

// matchSubmissionOrder restores the caller's file order. The network does not
// promise response ordering; with duplicate identifiers there is nothing to
// match on, so the list is taken positionally.
func matchSubmissionOrder(blobs []StoredQuiltBlob, submitted []string) []StoredQuiltBlob {
	byName := make(map[string]StoredQuiltBlob, len(blobs))
	for _, b := range blobs {
		if _, dup := byName[b.Identifier]; dup {
			return blobs
		}
		byName[b.Identifier] = b
	}
	ordered := make([]StoredQuiltBlob, 0, len(submitted))
	for _, name := range submitted {
		b, ok := byName[name]
		if !ok {
			return blobs
		}
		ordered = append(ordered, b)
	}
	return ordered
}

// ParseReadResponse interprets an aggregator read response. The payload is
// returned untouched; interpretation is the caller's business.
func ParseReadResponse(status int, body []byte) ([]byte, error) {
	const op = "walrus.ParseReadResponse"
	if !is2xx(status) {
		return nil, xerrors.HTTP(op, status, excerpt(body))
	}
	return body, nil
}

// ParseMetadataResponse derives blob metadata from HEAD response headers.
func ParseMetadataResponse(status int, header http.Header) (*BlobMetadata, error) {
	const op = "walrus.ParseMetadataResponse"
	if !is2xx(status) {
		return nil, xerrors.HTTP(op, status, "")
	}
	lengthStr := header.Get("Content-Length")
	if lengthStr == "" {
		return nil, &xerrors.Error{Kind: xerrors.KindUnexpectedShape, Op: op, Err: fmt.Errorf("missing Content-Length header")}
	}
	length, err := strconv.ParseUint(lengthStr, 10, 64)
	if err != nil {
		return nil, &xerrors.Error{Kind: xerrors.KindUnexpectedShape, Op: op, Err: fmt.Errorf("parse Content-Length: %w", err)}
	}
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return nil, &xerrors.Error{Kind: xerrors.KindUnexpectedShape, Op: op, Err: fmt.Errorf("missing Content-Type header")}
	}
	etag := header.Get("Etag")
	if etag == "" {
		return nil, &xerrors.Error{Kind: xerrors.KindUnexpectedShape, Op: op, Err: fmt.Errorf("missing Etag header")}
	}
	return &BlobMetadata{ContentLength: length, ContentType: contentType, ETag: etag}, nil
}
