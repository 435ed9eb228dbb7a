package walrus

import (
	"net/url"
	"strconv"
)

// StoreOptions control how the publisher registers storage. Zero values mean
// "use the network default" and are omitted from the request entirely.
type StoreOptions struct {
	// Epochs is the number of epochs the blob should stay stored.
	Epochs uint64
	// Deletable marks the blob as deletable by its owner.
	Deletable bool
	// Permanent requests permanent storage.
	Permanent bool
	// SendObjectTo transfers ownership of the created object to an address.
	SendObjectTo string
	// Force stores even if the blob is already certified.
	Force bool
	// Metadata attaches per-file tags to a quilt store. Ignored for plain
	// blob stores.
	Metadata []QuiltFileMetadata
}

func (o StoreOptions) query() url.Values {
	q := url.Values{}
	if o.Epochs > 0 {
		q.Set("epochs", strconv.FormatUint(o.Epochs, 10))
	}
	if o.Deletable {
		q.Set("deletable", "true")
	}
	if o.Permanent {
		q.Set("permanent", "true")
	}
	if o.SendObjectTo != "" {
		q.Set("send_object_to", o.SendObjectTo)
	}
	if o.Force {
		q.Set("force", "true")
	}
	return q
}
