package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// OperationStatus is the lifecycle state of a platform-side product operation.
type OperationStatus string

const (
	OperationCreated  OperationStatus = "CREATED"
	OperationActive   OperationStatus = "ACTIVE"
	OperationRunning  OperationStatus = "RUNNING"
	OperationComplete OperationStatus = "COMPLETE"
	OperationFailed   OperationStatus = "FAILED"
)

// Terminal reports whether no further state change is expected.
func (s OperationStatus) Terminal() bool {
	return s == OperationComplete || s == OperationFailed
}

// OptionSelectionInput selects the option values a component offers.
type OptionSelectionInput struct {
	ComponentOptionID string   `json:"componentOptionId"`
	Name              string   `json:"name"`
	Values            []string `json:"values"`
}

// BundleComponentInput describes one product contributing to a bundle.
type BundleComponentInput struct {
	Quantity         int                    `json:"quantity"`
	ProductID        string                 `json:"productId"`
	OptionSelections []OptionSelectionInput `json:"optionSelections"`
}

// ProductBundleCreateInput is the input of productBundleCreate.
type ProductBundleCreateInput struct {
	Title      string                 `json:"title"`
	Components []BundleComponentInput `json:"components"`
}

// ProductBundleUpdateInput is the input of productBundleUpdate.
type ProductBundleUpdateInput struct {
	ProductID  string                 `json:"productId"`
	Components []BundleComponentInput `json:"components"`
}

// ProductVariant mirrors the price fields of a platform variant.
type ProductVariant struct {
	ID             string  `json:"id"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compareAtPrice"`
}

// OperationProduct is the product attached to a completed operation.
type OperationProduct struct {
	ID       string
	Title    string
	Handle   string
	Variants []ProductVariant
}

// Operation is the polled state of a bundle create/update job.
type Operation struct {
	ID         string
	Status     OperationStatus
	Product    *OperationProduct
	UserErrors []UserError
}

// ProductInput is the subset of ProductInput used for descriptive updates.
type ProductInput struct {
	ID                string   `json:"id,omitempty"`
	Title             string   `json:"title,omitempty"`
	DescriptionHTML   *string  `json:"descriptionHtml,omitempty"`
	Status            string   `json:"status,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	ProductType       string   `json:"productType,omitempty"`
	CollectionsToJoin []string `json:"collectionsToJoin,omitempty"`
}

// VariantPriceInput is one entry of productVariantsBulkUpdate.
type VariantPriceInput struct {
	ID             string `json:"id"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice"`
}

// StagedUploadInput requests one upload target.
type StagedUploadInput struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	HTTPMethod string `json:"httpMethod"`
	FileSize   string `json:"fileSize"`
	Resource   string `json:"resource"`
}

// StagedUploadParameter is a form field required by an upload target.
type StagedUploadParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StagedTarget is a one-time upload destination.
type StagedTarget struct {
	URL         string                  `json:"url"`
	ResourceURL string                  `json:"resourceUrl"`
	Parameters  []StagedUploadParameter `json:"parameters"`
}

// CreateMediaInput attaches an uploaded or existing asset to a product.
type CreateMediaInput struct {
	MediaContentType string `json:"mediaContentType"`
	OriginalSource   string `json:"originalSource"`
	Alt              string `json:"alt"`
}

// ShopInfo holds shop-level settings.
type ShopInfo struct {
	Name            string `json:"name"`
	CurrencyCode    string `json:"currencyCode"`
	MyshopifyDomain string `json:"myshopifyDomain"`
}

type bundleOperationPayload struct {
	ProductBundleOperation *struct {
		ID string `json:"id"`
	} `json:"productBundleOperation"`
	UserErrors []UserError `json:"userErrors"`
}

// ProductBundleCreate submits a bundle creation job and returns its id.
func (c *Client) ProductBundleCreate(ctx context.Context, input ProductBundleCreateInput) (string, error) {
	var data struct {
		Payload bundleOperationPayload `json:"productBundleCreate"`
	}
	if err := c.Mutate(ctx, productBundleCreateMutation, map[string]any{"input": input}, &data); err != nil {
		return "", err
	}
	return jobIDFrom("Error creating product bundle", data.Payload)
}

// ProductBundleUpdate submits a bundle update job and returns its id.
func (c *Client) ProductBundleUpdate(ctx context.Context, input ProductBundleUpdateInput) (string, error) {
	var data struct {
		Payload bundleOperationPayload `json:"productBundleUpdate"`
	}
	if err := c.Mutate(ctx, productBundleUpdateMutation, map[string]any{"input": input}, &data); err != nil {
		return "", err
	}
	return jobIDFrom("Error updating product bundle", data.Payload)
}

func jobIDFrom(label string, payload bundleOperationPayload) (string, error) {
	if err := CheckUserErrors(label, payload.UserErrors); err != nil {
		return "", err
	}
	if payload.ProductBundleOperation == nil || strings.TrimSpace(payload.ProductBundleOperation.ID) == "" {
		return "", fmt.Errorf("%s: response carried no operation", label)
	}
	return payload.ProductBundleOperation.ID, nil
}

type operationProductPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Handle   string `json:"handle"`
	Variants struct {
		Edges []struct {
			Node ProductVariant `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

// ProductOperation reads the current state of a product operation.
func (c *Client) ProductOperation(ctx context.Context, jobID string) (Operation, error) {
	var data struct {
		Operation *struct {
			ID         string                   `json:"id"`
			Status     OperationStatus          `json:"status"`
			Product    *operationProductPayload `json:"product"`
			UserErrors []UserError              `json:"userErrors"`
		} `json:"productOperation"`
	}
	if err := c.Do(ctx, productOperationQuery, map[string]any{"jobId": jobID}, &data); err != nil {
		return Operation{}, err
	}
	if data.Operation == nil {
		return Operation{}, fmt.Errorf("shopify: operation %s not found", jobID)
	}
	op := Operation{
		ID:         data.Operation.ID,
		Status:     data.Operation.Status,
		UserErrors: data.Operation.UserErrors,
	}
	if p := data.Operation.Product; p != nil {
		product := &OperationProduct{ID: p.ID, Title: p.Title, Handle: p.Handle}
		for _, edge := range p.Variants.Edges {
			product.Variants = append(product.Variants, edge.Node)
		}
		op.Product = product
	}
	return op, nil
}

type productPayload struct {
	Product *struct {
		ID     string `json:"id"`
		Handle string `json:"handle"`
		Status string `json:"status"`
	} `json:"product"`
	UserErrors []UserError `json:"userErrors"`
}

// ProductUpdate applies descriptive field changes to a product.
func (c *Client) ProductUpdate(ctx context.Context, input ProductInput) error {
	if strings.TrimSpace(input.ID) == "" {
		return errors.New("shopify: product id is required")
	}
	var data struct {
		Payload productPayload `json:"productUpdate"`
	}
	if err := c.Mutate(ctx, productUpdateMutation, map[string]any{"input": input}, &data); err != nil {
		return err
	}
	return CheckUserErrors("Error updating product details", data.Payload.UserErrors)
}

// ProductCreate creates a plain product and returns its id and handle.
func (c *Client) ProductCreate(ctx context.Context, input ProductInput) (string, string, error) {
	var data struct {
		Payload productPayload `json:"productCreate"`
	}
	if err := c.Mutate(ctx, productCreateMutation, map[string]any{"input": input}, &data); err != nil {
		return "", "", err
	}
	if err := CheckUserErrors("Error creating product", data.Payload.UserErrors); err != nil {
		return "", "", err
	}
	if data.Payload.Product == nil {
		return "", "", errors.New("Error creating product: response carried no product")
	}
	return data.Payload.Product.ID, data.Payload.Product.Handle, nil
}

// ProductDelete removes a product.
func (c *Client) ProductDelete(ctx context.Context, productID string) error {
	var data struct {
		Payload struct {
			DeletedProductID *string     `json:"deletedProductId"`
			UserErrors       []UserError `json:"userErrors"`
		} `json:"productDelete"`
	}
	vars := map[string]any{"input": map[string]any{"id": productID}}
	if err := c.Mutate(ctx, productDeleteMutation, vars, &data); err != nil {
		return err
	}
	return CheckUserErrors("Error deleting product", data.Payload.UserErrors)
}

// ProductVariantsBulkUpdate pushes price changes for the variants of a product.
func (c *Client) ProductVariantsBulkUpdate(ctx context.Context, productID string, variants []VariantPriceInput) error {
	var data struct {
		Payload struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	vars := map[string]any{"productId": productID, "variants": variants}
	if err := c.Mutate(ctx, productVariantsBulkUpdateMutation, vars, &data); err != nil {
		return err
	}
	return CheckUserErrors("Error updating variant prices", data.Payload.UserErrors)
}

// StagedUploadsCreate requests one upload target per input, in order.
func (c *Client) StagedUploadsCreate(ctx context.Context, inputs []StagedUploadInput) ([]StagedTarget, error) {
	var data struct {
		Payload struct {
			StagedTargets []StagedTarget `json:"stagedTargets"`
			UserErrors    []UserError    `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	}
	if err := c.Mutate(ctx, stagedUploadsCreateMutation, map[string]any{"input": inputs}, &data); err != nil {
		return nil, err
	}
	if err := CheckUserErrors("Error creating staged uploads", data.Payload.UserErrors); err != nil {
		return nil, err
	}
	if len(data.Payload.StagedTargets) != len(inputs) {
		return nil, fmt.Errorf("Error creating staged uploads: requested %d targets, got %d", len(inputs), len(data.Payload.StagedTargets))
	}
	return data.Payload.StagedTargets, nil
}

// ProductCreateMedia attaches media to a product.
func (c *Client) ProductCreateMedia(ctx context.Context, productID string, media []CreateMediaInput) error {
	var data struct {
		Payload struct {
			MediaUserErrors []UserError `json:"mediaUserErrors"`
		} `json:"productCreateMedia"`
	}
	vars := map[string]any{"productId": productID, "media": media}
	if err := c.Mutate(ctx, productCreateMediaMutation, vars, &data); err != nil {
		return err
	}
	return CheckUserErrors("Error creating product media", data.Payload.MediaUserErrors)
}

// ShopInfo returns shop-level settings such as the currency.
func (c *Client) ShopInfo(ctx context.Context) (ShopInfo, error) {
	var data struct {
		Shop ShopInfo `json:"shop"`
	}
	if err := c.Do(ctx, shopInfoQuery, nil, &data); err != nil {
		return ShopInfo{}, err
	}
	return data.Shop, nil
}
