package docstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	cosmosAPIVersion        = "2018-12-31"
	cosmosQueryContentType  = "application/query+json"
	cosmosDocumentMediaType = "application/json"

	// Cosmos transactional batches are capped at 100 operations.
	cosmosBatchLimit = 100
)

// Cosmos talks to Azure Cosmos DB over its REST API. Every document carries
// an injected "partition" field equal to its collection name, so queries and
// batches stay single-partition.
type Cosmos struct {
	endpoint  *url.URL
	client    *http.Client
	key       string
	database  string
	container string
}

type cosmosQuery struct {
	Query      string                 `json:"query"`
	Parameters []cosmosQueryParameter `json:"parameters"`
}

type cosmosQueryParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type cosmosQueryResponse struct {
	Documents []json.RawMessage `json:"Documents"`
}

type cosmosBatchOperation struct {
	OperationType string `json:"operationType"`
	ID            string `json:"id"`
}

var _ Store = (*Cosmos)(nil)

func NewCosmos(endpoint, key, database, container string) (*Cosmos, error) {
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("cosmos endpoint and key are required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid cosmos endpoint: %w", err)
	}

	retry := retryablehttp.NewClient()
	retry.Logger = nil

	return &Cosmos{
		endpoint:  parsed,
		client:    retry.StandardClient(),
		key:       key,
		database:  database,
		container: container,
	}, nil
}

func (c *Cosmos) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.documentPath(id), "docs", c.documentResourceID(id), nil, func(req *http.Request) {
		c.setPartitionKeyHeader(req, collection)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.decodeCosmosError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return raw, nil
}

func (c *Cosmos) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]json.RawMessage, error) {
	query := cosmosQuery{
		Query: "SELECT * FROM c WHERE c.partition = @partition",
		Parameters: []cosmosQueryParameter{
			{Name: "@partition", Value: collection},
		},
	}
	for i, f := range filters {
		name := fmt.Sprintf("@f%d", i)
		query.Query += fmt.Sprintf(" AND c.%s = %s", f.Field, name)
		query.Parameters = append(query.Parameters, cosmosQueryParameter{Name: name, Value: f.Value})
	}

	return c.queryDocuments(ctx, query, limit)
}

func (c *Cosmos) QueryIn(ctx context.Context, collection, field string, values []string, filters ...Filter) ([]json.RawMessage, error) {
	if len(values) > MaxInValues {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyValues, len(values), MaxInValues)
	}
	if len(values) == 0 {
		return nil, nil
	}

	query := cosmosQuery{
		Query: "SELECT * FROM c WHERE c.partition = @partition",
		Parameters: []cosmosQueryParameter{
			{Name: "@partition", Value: collection},
		},
	}
	placeholders := make([]string, 0, len(values))
	for i, v := range values {
		name := fmt.Sprintf("@v%d", i)
		placeholders = append(placeholders, name)
		query.Parameters = append(query.Parameters, cosmosQueryParameter{Name: name, Value: v})
	}
	query.Query += fmt.Sprintf(" AND c.%s IN (%s)", field, strings.Join(placeholders, ", "))
	for i, f := range filters {
		name := fmt.Sprintf("@f%d", i)
		query.Query += fmt.Sprintf(" AND c.%s = %s", f.Field, name)
		query.Parameters = append(query.Parameters, cosmosQueryParameter{Name: name, Value: f.Value})
	}

	return c.queryDocuments(ctx, query, 0)
}

func (c *Cosmos) Set(ctx context.Context, collection, id string, doc any) error {
	body, err := c.encodeDocument(collection, id, doc)
	if err != nil {
		return err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.documentsPath(), "docs", c.documentsResourceID(), bytes.NewReader(body), func(req *http.Request) {
		req.Header.Set("Content-Type", cosmosDocumentMediaType)
		req.Header.Set("x-ms-documentdb-is-upsert", "true")
		c.setPartitionKeyHeader(req, collection)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.decodeCosmosError(resp)
	}
	return nil
}

// Update is read-merge-upsert. The REST partial-update surface buys nothing
// here since callers patch at most two fields at a time.
func (c *Cosmos) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := c.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return c.Set(ctx, collection, id, doc)
}

func (c *Cosmos) Delete(ctx context.Context, collection, id string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, c.documentPath(id), "docs", c.documentResourceID(id), nil, func(req *http.Request) {
		c.setPartitionKeyHeader(req, collection)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.decodeCosmosError(resp)
	}
	return nil
}

// BatchDelete issues one atomic transactional batch per call. All documents
// share the collection partition, which is what makes the batch legal.
func (c *Cosmos) BatchDelete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > cosmosBatchLimit {
		return fmt.Errorf("batch of %d exceeds cosmos limit of %d", len(ids), cosmosBatchLimit)
	}

	ops := make([]cosmosBatchOperation, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, cosmosBatchOperation{OperationType: "Delete", ID: id})
	}
	body, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.documentsPath(), "docs", c.documentsResourceID(), bytes.NewReader(body), func(req *http.Request) {
		req.Header.Set("Content-Type", cosmosDocumentMediaType)
		req.Header.Set("x-ms-cosmos-is-batch-request", "true")
		req.Header.Set("x-ms-cosmos-batch-atomic", "true")
		c.setPartitionKeyHeader(req, collection)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 404 inside an idempotent delete batch still surfaces as a batch error;
	// treat it as success like single-document Delete does.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.decodeCosmosError(resp)
	}
	return nil
}

func (c *Cosmos) encodeDocument(collection, id string, doc any) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	// The partition is the collection, so ids only need to be unique within
	// their own collection.
	fields["id"] = id
	fields["partition"] = collection
	return json.Marshal(fields)
}

func (c *Cosmos) queryDocuments(ctx context.Context, query cosmosQuery, limit int) ([]json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.documentsPath(), "docs", c.documentsResourceID(), bytes.NewReader(body), func(req *http.Request) {
		req.Header.Set("Content-Type", cosmosQueryContentType)
		req.Header.Set("x-ms-documentdb-isquery", "true")
		req.Header.Set("x-ms-documentdb-query-enablecrosspartition", "true")
		if limit > 0 {
			req.Header.Set("x-ms-max-item-count", strconv.Itoa(limit))
		}
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.decodeCosmosError(resp)
	}

	var parsed cosmosQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	if limit > 0 && len(parsed.Documents) > limit {
		parsed.Documents = parsed.Documents[:limit]
	}
	return parsed.Documents, nil
}

func (c *Cosmos) documentsPath() string {
	return fmt.Sprintf("/dbs/%s/colls/%s/docs", c.database, c.container)
}

func (c *Cosmos) documentPath(id string) string {
	return fmt.Sprintf("/dbs/%s/colls/%s/docs/%s", c.database, c.container, url.PathEscape(id))
}

func (c *Cosmos) documentsResourceID() string {
	return fmt.Sprintf("dbs/%s/colls/%s", c.database, c.container)
}

func (c *Cosmos) documentResourceID(id string) string {
	return fmt.Sprintf("dbs/%s/colls/%s/docs/%s", c.database, c.container, id)
}

func (c *Cosmos) setPartitionKeyHeader(req *http.Request, partition string) {
	payload, _ := json.Marshal([]string{partition})
	req.Header.Set("x-ms-documentdb-partitionkey", string(payload))
}

func (c *Cosmos) doRequest(ctx context.Context, method, path, resourceType, resourceID string, body io.Reader, extraHeaders func(*http.Request)) (*http.Response, error) {
	reqURL := c.endpoint.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-version", cosmosAPIVersion)
	req.Header.Set("Authorization", c.authHeader(method, resourceType, resourceID, date))
	if extraHeaders != nil {
		extraHeaders(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cosmos request failed: %w", err)
	}
	return resp, nil
}

func (c *Cosmos) authHeader(method, resourceType, resourceID, date string) string {
	payload := strings.ToLower(method) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceID + "\n" +
		strings.ToLower(date) + "\n\n"

	key, _ := base64.StdEncoding.DecodeString(c.key)
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	token := fmt.Sprintf("type=master&ver=1.0&sig=%s", signature)
	return url.QueryEscape(token)
}

func (c *Cosmos) decodeCosmosError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cosmos error status %d", resp.StatusCode)
	}
	return fmt.Errorf("cosmos error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
