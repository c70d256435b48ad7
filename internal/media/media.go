// Package media moves merchant-supplied files into platform staged uploads.
package media

import (
	"strconv"

	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Media content types understood by productCreateMedia.
const (
	ContentImage   = "IMAGE"
	ContentVideo   = "VIDEO"
	ContentModel3D = "MODEL_3D"
)

var contentTypes = map[string]string{
	"image/jpeg":        ContentImage,
	"image/png":         ContentImage,
	"image/gif":         ContentImage,
	"image/webp":        ContentImage,
	"image/svg+xml":     ContentImage,
	"video/mp4":         ContentVideo,
	"video/webm":        ContentVideo,
	"video/ogg":         ContentVideo,
	"model/gltf-binary": ContentModel3D,
	"model/gltf+json":   ContentModel3D,
}

// ContentType maps a MIME type to a media content type. Unknown types are
// treated as images.
func ContentType(mimeType string) string {
	if ct, ok := contentTypes[mimeType]; ok {
		return ct
	}
	return ContentImage
}

// Item is one media entry attached to a bundle. Product images reference an
// existing asset by Src; everything else carries its bytes in Data.
type Item struct {
	Name           string
	MimeType       string
	Size           int64
	AltText        string
	Src            string
	IsProductImage bool
	Data           []byte
}

// Split separates new files from reused product images, preserving order.
func Split(items []Item) (uploads []Item, productImages []Item) {
	for _, it := range items {
		if it.IsProductImage {
			productImages = append(productImages, it)
			continue
		}
		uploads = append(uploads, it)
	}
	return uploads, productImages
}

// StagedInputs builds one staged upload request per file.
func StagedInputs(uploads []Item) []shopify.StagedUploadInput {
	out := make([]shopify.StagedUploadInput, 0, len(uploads))
	for _, it := range uploads {
		size := it.Size
		if size == 0 {
			size = int64(len(it.Data))
		}
		out = append(out, shopify.StagedUploadInput{
			Filename:   it.Name,
			MimeType:   it.MimeType,
			HTTPMethod: "POST",
			FileSize:   strconv.FormatInt(size, 10),
			Resource:   ContentType(it.MimeType),
		})
	}
	return out
}

// CreateInputs lists staged resources first (in upload order) followed by the
// reused product images.
func CreateInputs(targets []shopify.StagedTarget, uploads []Item, productImages []Item) []shopify.CreateMediaInput {
	out := make([]shopify.CreateMediaInput, 0, len(targets)+len(productImages))
	for i, target := range targets {
		var it Item
		if i < len(uploads) {
			it = uploads[i]
		}
		out = append(out, shopify.CreateMediaInput{
			MediaContentType: ContentType(it.MimeType),
			OriginalSource:   target.ResourceURL,
			Alt:              it.AltText,
		})
	}
	for _, img := range productImages {
		out = append(out, shopify.CreateMediaInput{
			MediaContentType: ContentImage,
			OriginalSource:   img.Src,
			Alt:              img.AltText,
		})
	}
	return out
}
