package walrus

// Wire models for the publisher and aggregator JSON contract. All of these
// are produced by the network; the client only deserializes them.

// BlobObject describes a registered blob.
type BlobObject struct {
	ID              string      `json:"id"`
	RegisteredEpoch uint64      `json:"registeredEpoch"`
	BlobID          string      `json:"blobId"`
	Size            uint64      `json:"size"`
	EncodingType    string      `json:"encodingType"`
	CertifiedEpoch  *uint64     `json:"certifiedEpoch,omitempty"`
	Storage         StorageInfo `json:"storage"`
	Deletable       bool        `json:"deletable"`
}

// StorageInfo describes the storage resource backing a blob.
type StorageInfo struct {
	ID          string `json:"id"`
	StartEpoch  uint64 `json:"startEpoch"`
	EndEpoch    uint64 `json:"endEpoch"`
	StorageSize uint64 `json:"storageSize"`
}

// ResourceOperation describes how the storage resource was obtained.
type ResourceOperation struct {
	RegisterFromScratch *RegisterFromScratch `json:"registerFromScratch,omitempty"`
}

// RegisterFromScratch carries the details of a fresh registration.
type RegisterFromScratch struct {
	EncodedLength uint64 `json:"encodedLength"`
	EpochsAhead   uint64 `json:"epochsAhead"`
}

// NewlyCreated is the store outcome for fresh storage.
type NewlyCreated struct {
	BlobObject        BlobObject        `json:"blobObject"`
	ResourceOperation ResourceOperation `json:"resourceOperation"`
	Cost              uint64            `json:"cost"`
}

// Event references the certification event of an existing blob.
type Event struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// AlreadyCertified is the store outcome when identical bytes were certified
// before; the publisher deduplicates and performs no new storage.
type AlreadyCertified struct {
	BlobID   string `json:"blobId"`
	Event    Event  `json:"event"`
	EndEpoch uint64 `json:"endEpoch"`
}

// StoreResult is the outcome of a blob store. Exactly one variant is set;
// the interpreter rejects responses that populate both or neither, so
// callers can rely on the accessors being mutually exclusive.
type StoreResult struct {
	newlyCreated     *NewlyCreated
	alreadyCertified *AlreadyCertified
}

// NewlyCreated returns the fresh-storage variant, if that is the outcome.
func (r *StoreResult) NewlyCreated() (*NewlyCreated, bool) {
	return r.newlyCreated, r.newlyCreated != nil
}

// AlreadyCertified returns the deduplicated variant, if that is the outcome.
func (r *StoreResult) AlreadyCertified() (*AlreadyCertified, bool) {
	return r.alreadyCertified, r.alreadyCertified != nil
}

// BlobID returns the blob identifier regardless of variant.
func (r *StoreResult) BlobID() BlobID {
	if r.newlyCreated != nil {
		return BlobID(r.newlyCreated.BlobObject.BlobID)
	}
	return BlobID(r.alreadyCertified.BlobID)
}

// EndEpoch returns the epoch at which storage for the blob lapses.
func (r *StoreResult) EndEpoch() uint64 {
	if r.newlyCreated != nil {
		return r.newlyCreated.BlobObject.Storage.EndEpoch
	}
	return r.alreadyCertified.EndEpoch
}

// StoredQuiltBlob pairs a submitted file identifier with the patch ID the
// network assigned to it.
type StoredQuiltBlob struct {
	Identifier   string `json:"identifier"`
	QuiltPatchID string `json:"quiltPatchId"`
}

// QuiltStoreResult is the outcome of a quilt store: the StoreResult for the
// packed blob plus one StoredQuiltBlob per submitted file, in submission
// order.
type QuiltStoreResult struct {
	BlobStoreResult  StoreResult
	StoredQuiltBlobs []StoredQuiltBlob
}

// QuiltFile is one named input to a quilt store.
type QuiltFile struct {
	Identifier string
	Data       []byte
}

// QuiltFileMetadata carries optional per-file tags, serialized into the
// quilt store request's _metadata part.
type QuiltFileMetadata struct {
	Identifier string            `json:"identifier"`
	Tags       map[string]string `json:"tags"`
}

// BlobMetadata is derived from the headers of a HEAD response.
type BlobMetadata struct {
	ContentLength uint64
	ContentType   string
	ETag          string
}
