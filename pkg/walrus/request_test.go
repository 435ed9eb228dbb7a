package walrus

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"github.com/jacktea/walgo/pkg/xerrors"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestBuildStoreBlobRequest(t *testing.T) {
	publisher := mustParseURL(t, "https://publisher.example.com")
	spec := BuildStoreBlobRequest(publisher, []byte("hello"), StoreOptions{
		Epochs:       5,
		Deletable:    true,
		SendObjectTo: "0xabc",
		Force:        true,
	})
	if spec.Method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", spec.Method)
	}
	u := mustParseURL(t, spec.URL)
	if u.Path != "/v1/blobs" {
		t.Fatalf("expected path /v1/blobs, got %s", u.Path)
	}
	q := u.Query()
	if q.Get("epochs") != "5" || q.Get("deletable") != "true" || q.Get("send_object_to") != "0xabc" || q.Get("force") != "true" {
		t.Fatalf("unexpected query %q", u.RawQuery)
	}
	if q.Has("permanent") {
		t.Fatal("permanent should be omitted when unset")
	}
	if spec.ContentType != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", spec.ContentType)
	}
	if string(spec.Body) != "hello" {
		t.Fatalf("unexpected body %q", spec.Body)
	}
}

func TestBuildStoreBlobRequestDefaults(t *testing.T) {
	publisher := mustParseURL(t, "https://publisher.example.com")
	spec := BuildStoreBlobRequest(publisher, []byte("x"), StoreOptions{})
	u := mustParseURL(t, spec.URL)
	if u.RawQuery != "" {
		t.Fatalf("zero options should add no query, got %q", u.RawQuery)
	}
}

type quiltPart struct {
	name string
	io.Reader
}

func (p *quiltPart) FormName() string { return p.name }

func readQuiltParts(t *testing.T, spec RequestSpec) []*quiltPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(spec.ContentType)
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/form-data" {
		t.Fatalf("expected multipart/form-data, got %s", mediaType)
	}
	mr := multipart.NewReader(bytes.NewReader(spec.Body), params["boundary"])
	var parts []*quiltPart
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return parts
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		parts = append(parts, &quiltPart{name: p.FormName(), Reader: bytes.NewReader(data)})
	}
}

func TestBuildStoreQuiltRequest(t *testing.T) {
	publisher := mustParseURL(t, "https://publisher.example.com")
	files := []QuiltFile{
		{Identifier: "a.txt", Data: []byte("AAA")},
		{Identifier: "b.txt", Data: []byte("BBB")},
	}
	spec, err := BuildStoreQuiltRequest(publisher, files, StoreOptions{Epochs: 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if spec.Method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", spec.Method)
	}
	u := mustParseURL(t, spec.URL)
	if u.Path != "/v1/quilts" {
		t.Fatalf("expected path /v1/quilts, got %s", u.Path)
	}
	parts := readQuiltParts(t, spec)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	for i, want := range files {
		if parts[i].FormName() != want.Identifier {
			t.Fatalf("part %d: expected name %q, got %q", i, want.Identifier, parts[i].FormName())
		}
		data, err := io.ReadAll(parts[i])
		if err != nil {
			t.Fatalf("read part %d: %v", i, err)
		}
		if !bytes.Equal(data, want.Data) {
			t.Fatalf("part %d: expected %q, got %q", i, want.Data, data)
		}
	}
}

func TestBuildStoreQuiltRequestMetadataPart(t *testing.T) {
	publisher := mustParseURL(t, "https://publisher.example.com")
	files := []QuiltFile{{Identifier: "a.txt", Data: []byte("AAA")}}
	opts := StoreOptions{Metadata: []QuiltFileMetadata{
		{Identifier: "a.txt", Tags: map[string]string{"kind": "text"}},
	}}
	spec, err := BuildStoreQuiltRequest(publisher, files, opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parts := readQuiltParts(t, spec)
	if len(parts) != 2 {
		t.Fatalf("expected file part plus metadata part, got %d", len(parts))
	}
	last := parts[len(parts)-1]
	if last.FormName() != metadataPartName {
		t.Fatalf("expected %s part, got %q", metadataPartName, last.FormName())
	}
	data, _ := io.ReadAll(last)
	if !bytes.Contains(data, []byte(`"kind":"text"`)) {
		t.Fatalf("metadata part missing tags: %s", data)
	}
}

func TestBuildStoreQuiltRequestEmptyInput(t *testing.T) {
	publisher := mustParseURL(t, "https://publisher.example.com")
	_, err := BuildStoreQuiltRequest(publisher, nil, StoreOptions{})
	if err == nil {
		t.Fatal("expected error for empty quilt")
	}
	if xerrors.KindOf(err) != xerrors.KindEmptyQuilt {
		t.Fatalf("expected KindEmptyQuilt, got %v", xerrors.KindOf(err))
	}
}

func TestBuildStoreQuiltRequestKeepsDuplicateNames(t *testing.T) {
	publisher := mustParseURL(t, "https://publisher.example.com")
	files := []QuiltFile{
		{Identifier: "same", Data: []byte("one")},
		{Identifier: "same", Data: []byte("two")},
	}
	spec, err := BuildStoreQuiltRequest(publisher, files, StoreOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parts := readQuiltParts(t, spec)
	if len(parts) != 2 {
		t.Fatalf("duplicate names must pass through, got %d parts", len(parts))
	}
	if parts[0].FormName() != "same" || parts[1].FormName() != "same" {
		t.Fatal("part names must not be rewritten")
	}
}

func TestBuildStoreQuiltRequestDeterministic(t *testing.T) {
	publisher := mustParseURL(t, "https://publisher.example.com")
	files := []QuiltFile{{Identifier: "a.txt", Data: []byte("AAA")}}
	first, err := buildStoreQuiltRequest(publisher, files, StoreOptions{Epochs: 2}, "fixed-boundary")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := buildStoreQuiltRequest(publisher, files, StoreOptions{Epochs: 2}, "fixed-boundary")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs must produce identical specs")
	}
}

func TestBuildReadRequests(t *testing.T) {
	aggregator := mustParseURL(t, "https://aggregator.example.com")
	cases := []struct {
		name   string
		spec   RequestSpec
		method string
		path   string
	}{
		{"blob", BuildReadBlobRequest(aggregator, "abc123"), http.MethodGet, "/v1/blobs/abc123"},
		{"object", BuildReadBlobByObjectIDRequest(aggregator, "0xdef"), http.MethodGet, "/v1/blobs/by-object-id/0xdef"},
		{"patch", BuildReadQuiltPatchRequest(aggregator, "patch-1"), http.MethodGet, "/v1/blobs/by-quilt-patch-id/patch-1"},
		{"quilt", BuildReadQuiltBlobRequest(aggregator, "quilt-1", "a.txt"), http.MethodGet, "/v1/blobs/by-quilt-id/quilt-1/a.txt"},
		{"head", BuildBlobMetadataRequest(aggregator, "abc123"), http.MethodHead, "/v1/blobs/abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.spec.Method != tc.method {
				t.Fatalf("expected %s, got %s", tc.method, tc.spec.Method)
			}
			u := mustParseURL(t, tc.spec.URL)
			if u.Path != tc.path {
				t.Fatalf("expected path %s, got %s", tc.path, u.Path)
			}
			if tc.spec.Body != nil {
				t.Fatal("read requests carry no body")
			}
		})
	}
}

func TestBuildReadRequestEscapesIdentifier(t *testing.T) {
	aggregator := mustParseURL(t, "https://aggregator.example.com")
	spec := BuildReadQuiltBlobRequest(aggregator, "quilt-1", "dir/file name.txt")
	u := mustParseURL(t, spec.URL)
	if u.EscapedPath() != "/v1/blobs/by-quilt-id/quilt-1/dir%2Ffile%20name.txt" {
		t.Fatalf("identifier not escaped: %s", u.EscapedPath())
	}
}
