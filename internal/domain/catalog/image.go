package catalog

import (
	"strings"
)

// PreviewScheme prefixes references to local previews that have not been
// uploaded yet.
const PreviewScheme = "blob:"

// ImageState tells whether an image is durable on the backend or still a
// local preview.
type ImageState uint8

const (
	// ImagePersisted images are served by the backend.
	ImagePersisted ImageState = iota
	// ImagePending images only exist as a local preview and await upload.
	ImagePending
)

func (s ImageState) String() string {
	switch s {
	case ImagePersisted:
		return "persisted"
	case ImagePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Image is either Persisted(URL) or Pending(Handle).
type Image struct {
	State  ImageState
	URL    string
	Handle string
}

// PersistedImage returns a durable image served at url.
func PersistedImage(url string) Image {
	return Image{State: ImagePersisted, URL: url}
}

// PendingImage returns an image backed by the local preview handle.
func PendingImage(handle string) Image {
	return Image{State: ImagePending, Handle: handle}
}

// Pending reports whether the image still needs to be uploaded.
func (i Image) Pending() bool {
	return i.State == ImagePending
}

// Ref renders the image the way selectors display it: the durable URL, or
// the preview handle under the blob: scheme.
func (i Image) Ref() string {
	if i.Pending() {
		if strings.HasPrefix(i.Handle, PreviewScheme) {
			return i.Handle
		}
		return PreviewScheme + i.Handle
	}
	return i.URL
}

// ParseImageRef classifies a reference by its scheme: blob: references are
// pending previews, everything else is durable.
func ParseImageRef(ref string) Image {
	if strings.HasPrefix(ref, PreviewScheme) {
		return PendingImage(ref)
	}
	return PersistedImage(ref)
}
