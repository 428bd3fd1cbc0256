// Package fileid defines the typed file identity and persistent-store key
// namespacing shared by every storage-facing package (blobstore, blobcache,
// download, cachemanager, orchestrator). Keeping construction behind a
// handful of functions here is what guarantees the namespace
// disambiguation invariant in spec §9: a media file and a layout file that
// happen to share a numeric id must never collide in a map or a store key.
package fileid

import "fmt"

// Kind distinguishes the four kinds of file the player tracks. Equality of
// an ID always includes Kind, so (Media, 78) and (Layout, 78) are distinct.
type Kind int

const (
	// KindLayout identifies a layout descriptor file.
	KindLayout Kind = iota
	// KindMedia identifies a media asset (image, video, audio, font, ...).
	KindMedia
	// KindWidgetHTML identifies a server-rendered widget HTML fragment.
	KindWidgetHTML
	// KindLayoutBundleAsset identifies an asset bundled with a layout
	// (e.g. a font or stylesheet referenced only from within the layout).
	KindLayoutBundleAsset
)

func (k Kind) String() string {
	switch k {
	case KindLayout:
		return "layout"
	case KindMedia:
		return "media"
	case KindWidgetHTML:
		return "widget-html"
	case KindLayoutBundleAsset:
		return "layout-bundle-asset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ID is the typed key identifying a file. It is comparable (safe as a map
// key): two IDs are equal only if Kind, Num, and Sub all match.
type ID struct {
	Kind Kind
	Num  uint64
	// Sub disambiguates files that share a (Kind, Num) pair but are not
	// the same blob, e.g. a widget HTML fragment scoped to a region and
	// widget within a layout. Empty for layouts and plain media.
	Sub string
}

// Layout constructs a layout file ID.
func Layout(num uint64) ID { return ID{Kind: KindLayout, Num: num} }

// Media constructs a media file ID.
func Media(num uint64) ID { return ID{Kind: KindMedia, Num: num} }

// WidgetHTML constructs a widget-HTML file ID scoped to a region/widget pair.
func WidgetHTML(layoutNum uint64, region, widget string) ID {
	return ID{Kind: KindWidgetHTML, Num: layoutNum, Sub: region + "/" + widget}
}

// LayoutBundleAsset constructs a layout-bundle-asset ID scoped by sub-path.
func LayoutBundleAsset(layoutNum uint64, sub string) ID {
	return ID{Kind: KindLayoutBundleAsset, Num: layoutNum, Sub: sub}
}

func (id ID) String() string {
	if id.Sub == "" {
		return fmt.Sprintf("%s/%d", id.Kind, id.Num)
	}
	return fmt.Sprintf("%s/%d/%s", id.Kind, id.Num, id.Sub)
}

// StoreKey is an opaque, path-like key into BlobStore. It is constructed
// only by the functions in this file so that every package namespaces the
// store identically.
type StoreKey string

func kindDir(k Kind) string {
	switch k {
	case KindLayout:
		return "layout"
	case KindMedia:
		return "media"
	case KindWidgetHTML:
		return "widget-html"
	case KindLayoutBundleAsset:
		return "layout-bundle"
	default:
		return "unknown"
	}
}

// BlobKey returns the key under which a whole-file blob is stored.
func BlobKey(id ID) StoreKey {
	if id.Sub == "" {
		return StoreKey(fmt.Sprintf("%s/%d", kindDir(id.Kind), id.Num))
	}
	return StoreKey(fmt.Sprintf("%s/%d/%s", kindDir(id.Kind), id.Num, id.Sub))
}

// MetaKey returns the key under which a file's FileEntry metadata is stored.
func MetaKey(id ID) StoreKey {
	return StoreKey(fmt.Sprintf("%s/meta", BlobKey(id)))
}

// ChunkKey returns the key for one chunk of a chunked file.
func ChunkKey(id ID, index uint32) StoreKey {
	return StoreKey(fmt.Sprintf("%s/chunk-%d", BlobKey(id), index))
}

// ChunkPrefix returns the key prefix shared by all chunks of a file, for
// use with BlobStore.DeletePrefix.
func ChunkPrefix(id ID) StoreKey {
	return StoreKey(fmt.Sprintf("%s/chunk-", BlobKey(id)))
}
