package shopify

const productBundleCreateMutation = `
mutation ProductBundleCreate($input: ProductBundleCreateInput!) {
  productBundleCreate(input: $input) {
    productBundleOperation {
      id
      product { id }
    }
    userErrors { field message }
  }
}`

const productBundleUpdateMutation = `
mutation ProductBundleUpdate($input: ProductBundleUpdateInput!) {
  productBundleUpdate(input: $input) {
    productBundleOperation {
      id
      product { id }
    }
    userErrors { field message }
  }
}`

const productOperationQuery = `
query JobPoller($jobId: ID!) {
  productOperation(id: $jobId) {
    ... on ProductBundleOperation {
      id
      status
      product {
        id
        title
        handle
        variants(first: 250) {
          edges {
            node { id price compareAtPrice }
          }
        }
      }
      userErrors { field message code }
    }
  }
}`

const productUpdateMutation = `
mutation ProductUpdate($input: ProductInput!) {
  productUpdate(input: $input) {
    product { id status }
    userErrors { field message }
  }
}`

const productCreateMutation = `
mutation ProductCreate($input: ProductInput!) {
  productCreate(input: $input) {
    product { id handle status }
    userErrors { field message }
  }
}`

const productDeleteMutation = `
mutation ProductDelete($input: ProductDeleteInput!) {
  productDelete(input: $input) {
    deletedProductId
    userErrors { field message }
  }
}`

const productVariantsBulkUpdateMutation = `
mutation ProductVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants { id price compareAtPrice }
    userErrors { field message }
  }
}`

const stagedUploadsCreateMutation = `
mutation UploadStagedMedia($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets {
      url
      resourceUrl
      parameters { name value }
    }
    userErrors { field message }
  }
}`

const productCreateMediaMutation = `
mutation ProductCreateMedia($productId: ID!, $media: [CreateMediaInput!]!) {
  productCreateMedia(productId: $productId, media: $media) {
    media { mediaContentType status }
    mediaUserErrors { field message code }
  }
}`

const shopInfoQuery = `
query ShopInfo {
  shop { name currencyCode myshopifyDomain }
}`
