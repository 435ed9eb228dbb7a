package walrus

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/jacktea/walgo/pkg/xerrors"
)

// RequestSpec is a fully materialized HTTP exchange description. Builders
// are pure functions, so both execution modes construct identical specs for
// identical inputs and tests can snapshot them without any I/O.
type RequestSpec struct {
	Method      string
	URL         string
	ContentType string
	Body        []byte
}

const metadataPartName = "_metadata"

// BuildStoreBlobRequest describes a raw-body PUT of data against the
// publisher's blob store endpoint.
func BuildStoreBlobRequest(publisher *url.URL, data []byte, opts StoreOptions) RequestSpec {
	u := publisher.JoinPath("v1", "blobs")
	u.RawQuery = opts.query().Encode()
	return RequestSpec{
		Method:      http.MethodPut,
		URL:         u.String(),
		ContentType: "application/octet-stream",
		Body:        data,
	}
}

// BuildStoreQuiltRequest describes a multipart PUT packing files against the
// publisher's quilt store endpoint. Part field names carry the submitted
// identifiers verbatim; duplicates are passed through, the network owns the
// collision policy.
func BuildStoreQuiltRequest(publisher *url.URL, files []QuiltFile, opts StoreOptions) (RequestSpec, error) {
	return buildStoreQuiltRequest(publisher, files, opts, "")
}

func buildStoreQuiltRequest(publisher *url.URL, files []QuiltFile, opts StoreOptions, boundary string) (RequestSpec, error) {
	const op = "walrus.BuildStoreQuiltRequest"
	if len(files) == 0 {
		return RequestSpec{}, xerrors.E(xerrors.KindEmptyQuilt, op, "")
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if boundary != "" {
		if err := mw.SetBoundary(boundary); err != nil {
			return RequestSpec{}, xerrors.Wrap(xerrors.KindInternal, op, "", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormField(f.Identifier)
		if err != nil {
			return RequestSpec{}, xerrors.Wrap(xerrors.KindInternal, op, f.Identifier, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return RequestSpec{}, xerrors.Wrap(xerrors.KindInternal, op, f.Identifier, err)
		}
	}
	if len(opts.Metadata) > 0 {
		meta, err := json.Marshal(opts.Metadata)
		if err != nil {
			return RequestSpec{}, xerrors.Wrap(xerrors.KindInternal, op, metadataPartName, err)
		}
		part, err := mw.CreateFormField(metadataPartName)
		if err != nil {
			return RequestSpec{}, xerrors.Wrap(xerrors.KindInternal, op, metadataPartName, err)
		}
		if _, err := part.Write(meta); err != nil {
			return RequestSpec{}, xerrors.Wrap(xerrors.KindInternal, op, metadataPartName, err)
		}
	}
	if err := mw.Close(); err != nil {
		return RequestSpec{}, xerrors.Wrap(xerrors.KindInternal, op, "", err)
	}
	u := publisher.JoinPath("v1", "quilts")
	u.RawQuery = opts.query().Encode()
	return RequestSpec{
		Method:      http.MethodPut,
		URL:         u.String(),
		ContentType: mw.FormDataContentType(),
		Body:        body.Bytes(),
	}, nil
}

// BuildReadBlobRequest describes a GET of a blob by its ID.
func BuildReadBlobRequest(aggregator *url.URL, blobID string) RequestSpec {
	u := aggregator.JoinPath("v1", "blobs", url.PathEscape(blobID))
	return RequestSpec{Method: http.MethodGet, URL: u.String()}
}

// BuildReadBlobByObjectIDRequest describes a GET of a blob by the ID of its
// owning object.
func BuildReadBlobByObjectIDRequest(aggregator *url.URL, objectID string) RequestSpec {
	u := aggregator.JoinPath("v1", "blobs", "by-object-id", url.PathEscape(objectID))
	return RequestSpec{Method: http.MethodGet, URL: u.String()}
}

// BuildReadQuiltPatchRequest describes a GET of one file inside a quilt by
// its patch ID.
func BuildReadQuiltPatchRequest(aggregator *url.URL, patchID string) RequestSpec {
	u := aggregator.JoinPath("v1", "blobs", "by-quilt-patch-id", url.PathEscape(patchID))
	return RequestSpec{Method: http.MethodGet, URL: u.String()}
}

// BuildReadQuiltBlobRequest describes a GET of one file inside a quilt by
// the quilt ID and the file's identifier. Identifiers are arbitrary names,
// so each path segment is escaped; URL.JoinPath alone would let a slash in
// an identifier change the route.
func BuildReadQuiltBlobRequest(aggregator *url.URL, quiltID, identifier string) RequestSpec {
	u := aggregator.JoinPath("v1", "blobs", "by-quilt-id", url.PathEscape(quiltID), url.PathEscape(identifier))
	return RequestSpec{Method: http.MethodGet, URL: u.String()}
}

// BuildBlobMetadataRequest describes a HEAD of a blob by its ID.
func BuildBlobMetadataRequest(aggregator *url.URL, blobID string) RequestSpec {
	u := aggregator.JoinPath("v1", "blobs", url.PathEscape(blobID))
	return RequestSpec{Method: http.MethodHead, URL: u.String()}
}
