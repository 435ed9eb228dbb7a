package walrus

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/jacktea/walgo/pkg/xerrors"
)

// Identifiers travel on the wire as unpadded base64url. A blob ID decodes to
// a 32-byte digest. A quilt patch ID decodes to the 32-byte digest of the
// containing quilt followed by a 5-byte locator: one version byte and the
// little-endian start and end slot indices of the patch.
const (
	blobIDRawLen  = 32
	patchLocLen   = 5
	patchIDRawLen = blobIDRawLen + patchLocLen
	patchVersion  = 1
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// BlobID is the canonical identifier of a stored blob. The network derives
// it from content; the client treats it as opaque.
type BlobID string

// String returns the wire form of the blob ID.
func (id BlobID) String() string { return string(id) }

// QuiltPatchID locates one file inside a stored quilt.
type QuiltPatchID struct {
	quiltID    BlobID
	version    byte
	startIndex uint16
	endIndex   uint16
}

// QuiltID returns the identifier of the quilt containing the patch.
func (p QuiltPatchID) QuiltID() BlobID { return p.quiltID }

// Range returns the start and end slot indices of the patch within the quilt.
func (p QuiltPatchID) Range() (start, end uint16) { return p.startIndex, p.endIndex }

// String re-encodes the patch ID to its wire form.
func (p QuiltPatchID) String() string {
	raw := make([]byte, 0, patchIDRawLen)
	quilt, err := DecodeID(string(p.quiltID))
	if err != nil {
		return ""
	}
	raw = append(raw, quilt...)
	raw = append(raw, p.version)
	raw = binary.LittleEndian.AppendUint16(raw, p.startIndex)
	raw = binary.LittleEndian.AppendUint16(raw, p.endIndex)
	return EncodeID(raw)
}

// EncodeID encodes raw identifier bytes to unpadded base64url.
func EncodeID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeID decodes an unpadded base64url identifier. Padding characters and
// characters outside the url-safe alphabet are rejected; the stdlib decoder
// alone would silently skip newlines.
func DecodeID(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if !isIDChar(s[i]) {
			return nil, &xerrors.Error{
				Kind: xerrors.KindInvalidIdentifier,
				Op:   "walrus.DecodeID",
				Ref:  s,
				Err:  fmt.Errorf("byte %q at offset %d outside identifier alphabet", s[i], i),
			}
		}
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, &xerrors.Error{Kind: xerrors.KindInvalidIdentifier, Op: "walrus.DecodeID", Ref: s, Err: err}
	}
	return raw, nil
}

func isIDChar(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9', b == '-', b == '_':
		return true
	}
	return false
}

// ParseBlobID validates the wire form of a blob ID.
func ParseBlobID(s string) (BlobID, error) {
	raw, err := DecodeID(s)
	if err != nil {
		return "", err
	}
	if len(raw) != blobIDRawLen {
		return "", &xerrors.Error{
			Kind: xerrors.KindInvalidIdentifier,
			Op:   "walrus.ParseBlobID",
			Ref:  s,
			Err:  fmt.Errorf("decodes to %d bytes, want %d", len(raw), blobIDRawLen),
		}
	}
	return BlobID(s), nil
}

// ParseQuiltPatchID validates and splits the wire form of a quilt patch ID.
func ParseQuiltPatchID(s string) (QuiltPatchID, error) {
	raw, err := DecodeID(s)
	if err != nil {
		return QuiltPatchID{}, err
	}
	if len(raw) != patchIDRawLen {
		return QuiltPatchID{}, &xerrors.Error{
			Kind: xerrors.KindInvalidIdentifier,
			Op:   "walrus.ParseQuiltPatchID",
			Ref:  s,
			Err:  fmt.Errorf("decodes to %d bytes, want %d", len(raw), patchIDRawLen),
		}
	}
	loc := raw[blobIDRawLen:]
	if loc[0] != patchVersion {
		return QuiltPatchID{}, &xerrors.Error{
			Kind: xerrors.KindInvalidIdentifier,
			Op:   "walrus.ParseQuiltPatchID",
			Ref:  s,
			Err:  fmt.Errorf("unsupported patch version %d", loc[0]),
		}
	}
	return QuiltPatchID{
		quiltID:    BlobID(EncodeID(raw[:blobIDRawLen])),
		version:    loc[0],
		startIndex: binary.LittleEndian.Uint16(loc[1:3]),
		endIndex:   binary.LittleEndian.Uint16(loc[3:5]),
	}, nil
}
