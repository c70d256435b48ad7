package shopify

import (
	"strconv"
	"strings"
)

const gidPrefix = "gid://shopify/"

// GID builds a global id for resource and id. Values already in GID form are
// returned unchanged.
func GID(resource, id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, gidPrefix) {
		return id
	}
	return gidPrefix + resource + "/" + id
}

// ProductGID returns the global id of a product.
func ProductGID(id string) string { return GID("Product", id) }

// ProductGIDFromInt returns the global id of a product from its numeric id.
func ProductGIDFromInt(id int64) string { return ProductGID(strconv.FormatInt(id, 10)) }

// VariantGID returns the global id of a product variant.
func VariantGID(id string) string { return GID("ProductVariant", id) }

// LegacyID returns the trailing numeric segment of a global id.
func LegacyID(gid string) string {
	gid = strings.TrimSpace(gid)
	if idx := strings.LastIndex(gid, "/"); idx >= 0 {
		return gid[idx+1:]
	}
	return gid
}
