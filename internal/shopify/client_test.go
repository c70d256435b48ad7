package shopify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/resilience"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

type plainDoer struct{ client *http.Client }

func (d plainDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(ctx))
}

type recordedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newTestClient(t *testing.T, handler func(req recordedRequest) string) (*shopify.Client, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.Header.Get("X-Shopify-Access-Token"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req recordedRequest
		require.NoError(t, json.Unmarshal(body, &req))
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, handler(req))
	}))
	t.Cleanup(srv.Close)

	client, err := shopify.NewClient(shopify.ClientConfig{
		Shop:        "demo.myshopify.com",
		AccessToken: "tok",
		Endpoint:    srv.URL,
		HTTP:        plainDoer{client: srv.Client()},
	})
	require.NoError(t, err)
	return client, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), seen...)
	}
}

func TestProductBundleCreateReturnsJobID(t *testing.T) {
	client, seen := newTestClient(t, func(recordedRequest) string {
		return `{"data":{"productBundleCreate":{"productBundleOperation":{"id":"gid://shopify/ProductBundleOperation/1","product":null},"userErrors":[]}}}`
	})
	jobID, err := client.ProductBundleCreate(context.Background(), shopify.ProductBundleCreateInput{
		Title: "Duo",
		Components: []shopify.BundleComponentInput{{
			Quantity:  2,
			ProductID: "gid://shopify/Product/10",
			OptionSelections: []shopify.OptionSelectionInput{
				{ComponentOptionID: "gid://shopify/ProductOption/5", Name: "Tee Color", Values: []string{"Red"}},
			},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "gid://shopify/ProductBundleOperation/1", jobID)
	requests := seen()
	require.Len(t, requests, 1)
	input := requests[0].Variables["input"].(map[string]any)
	require.Equal(t, "Duo", input["title"])
}

func TestUserErrorsEmbedLabelAndList(t *testing.T) {
	client, _ := newTestClient(t, func(recordedRequest) string {
		return `{"data":{"productBundleCreate":{"productBundleOperation":null,"userErrors":[{"field":["input","title"],"message":"Title can't be blank"}]}}}`
	})
	_, err := client.ProductBundleCreate(context.Background(), shopify.ProductBundleCreateInput{})
	require.Error(t, err)
	var ue *shopify.UserErrorsError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "Title can't be blank", ue.Errors[0].Message)
	require.Equal(t, `Error creating product bundle: [{"field":["input","title"],"message":"Title can't be blank"}]`, err.Error())
}

func TestProductOperationDecodesVariants(t *testing.T) {
	client, _ := newTestClient(t, func(recordedRequest) string {
		return `{"data":{"productOperation":{"id":"op1","status":"COMPLETE","product":{"id":"gid://shopify/Product/9","title":"Duo","handle":"duo","variants":{"edges":[{"node":{"id":"v1","price":"30.00","compareAtPrice":null}},{"node":{"id":"v2","price":"35.00","compareAtPrice":"40.00"}}]}},"userErrors":[]}}}`
	})
	op, err := client.ProductOperation(context.Background(), "op1")
	require.NoError(t, err)
	require.Equal(t, shopify.OperationComplete, op.Status)
	require.NotNil(t, op.Product)
	require.Equal(t, "duo", op.Product.Handle)
	require.Len(t, op.Product.Variants, 2)
	require.Nil(t, op.Product.Variants[0].CompareAtPrice)
	require.Equal(t, "40.00", *op.Product.Variants[1].CompareAtPrice)
}

func TestTopLevelErrorsAreTransportErrors(t *testing.T) {
	client, _ := newTestClient(t, func(recordedRequest) string {
		return `{"errors":[{"message":"Throttled"}]}`
	})
	err := client.ProductDelete(context.Background(), "gid://shopify/Product/1")
	require.ErrorIs(t, err, shopify.ErrGraphQL)
}

func TestStagedUploadsCountMismatch(t *testing.T) {
	client, _ := newTestClient(t, func(recordedRequest) string {
		return `{"data":{"stagedUploadsCreate":{"stagedTargets":[],"userErrors":[]}}}`
	})
	_, err := client.StagedUploadsCreate(context.Background(), []shopify.StagedUploadInput{{Filename: "a.png"}})
	require.Error(t, err)
}

func TestMediaUserErrorsKey(t *testing.T) {
	client, _ := newTestClient(t, func(recordedRequest) string {
		return `{"data":{"productCreateMedia":{"media":[],"mediaUserErrors":[{"message":"bad source"}]}}}`
	})
	err := client.ProductCreateMedia(context.Background(), "p", []shopify.CreateMediaInput{{OriginalSource: "x"}})
	require.ErrorContains(t, err, "Error creating product media")
	require.ErrorContains(t, err, "bad source")
}

func TestGIDHelpers(t *testing.T) {
	require.Equal(t, "gid://shopify/ProductVariant/V1", shopify.VariantGID("V1"))
	require.Equal(t, "gid://shopify/ProductVariant/7", shopify.VariantGID("gid://shopify/ProductVariant/7"))
	require.Equal(t, "gid://shopify/Product/42", shopify.ProductGIDFromInt(42))
	require.Equal(t, "42", shopify.LegacyID("gid://shopify/Product/42"))
	require.Equal(t, "demo.myshopify.com", shopify.NormalizeShopDomain("https://Demo.myshopify.com/"))
}

func TestShopInfo(t *testing.T) {
	client, seen := newTestClient(t, func(recordedRequest) string {
		return `{"data":{"shop":{"name":"Demo","currencyCode":"EUR","myshopifyDomain":"demo.myshopify.com"}}}`
	})
	info, err := client.ShopInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, shopify.ShopInfo{Name: "Demo", CurrencyCode: "EUR", MyshopifyDomain: "demo.myshopify.com"}, info)
	require.Contains(t, seen()[0].Query, "currencyCode")
}

// flakyClient returns a client over a retrying transport whose upstream fails
// the first request with 502, and a counter of requests received.
func flakyClient(t *testing.T, body string) (*shopify.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	client, err := shopify.NewClient(shopify.ClientConfig{
		Shop:        "demo.myshopify.com",
		AccessToken: "tok",
		Endpoint:    srv.URL,
		HTTP:        resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 3, BaseBackoff: time.Millisecond},
	})
	require.NoError(t, err)
	return client, &calls
}

func TestMutationsAreNotRetried(t *testing.T) {
	client, calls := flakyClient(t, `{"data":{"productBundleCreate":{"productBundleOperation":{"id":"gid://shopify/ProductBundleOperation/2"},"userErrors":[]}}}`)

	jobID, err := client.ProductBundleCreate(context.Background(), shopify.ProductBundleCreateInput{Title: "Duo"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "502"))
	require.Empty(t, jobID)
	require.EqualValues(t, 1, calls.Load())
}

func TestQueriesAreRetried(t *testing.T) {
	client, calls := flakyClient(t, `{"data":{"shop":{"name":"Demo","currencyCode":"EUR","myshopifyDomain":"demo.myshopify.com"}}}`)

	info, err := client.ShopInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "EUR", info.CurrencyCode)
	require.EqualValues(t, 2, calls.Load())
}
