// Package pinecone is a minimal REST client to a Pinecone serverless
// index and the Pinecone inference API. Only the operations the engine
// needs are implemented: hybrid query, hybrid upsert, sparse embedding
// and index stats.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/intellipatent/intellipatent/internal/model"
	"github.com/intellipatent/intellipatent/internal/vectorindex"
)

const apiVersion = "2025-01"

var _ vectorindex.Index = (*Client)(nil)

type Config struct {
	APIKey      string
	Host        string
	ControlURL  string
	SparseModel string
	Timeout     time.Duration
}

type Client struct {
	apiKey      string
	host        string
	controlURL  string
	sparseModel string
	client      *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		controlURL = "https://api.pinecone.io"
	}
	return &Client{
		apiKey:      cfg.APIKey,
		host:        strings.TrimSuffix(cfg.Host, "/"),
		controlURL:  strings.TrimSuffix(controlURL, "/"),
		sparseModel: cfg.SparseModel,
		client:      &http.Client{Timeout: timeout},
	}
}

type sparseValues struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

type queryRequest struct {
	Vector          []float32     `json:"vector"`
	SparseVector    *sparseValues `json:"sparseVector,omitempty"`
	TopK            int           `json:"topK"`
	IncludeValues   bool          `json:"includeValues"`
	IncludeMetadata bool          `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID    string  `json:"id"`
		Score float32 `json:"score"`
	} `json:"matches"`
}

func (c *Client) Query(ctx context.Context, req vectorindex.QueryRequest) ([]vectorindex.Match, error) {
	if len(req.Dense) == 0 {
		return nil, fmt.Errorf("dense vector is required")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	body := queryRequest{
		Vector: req.Dense,
		TopK:   topK,
	}
	if req.Sparse != nil {
		body.SparseVector = &sparseValues{Indices: req.Sparse.Indices, Values: req.Sparse.Values}
	}
	var resp queryResponse
	if err := c.postJSON(ctx, c.host+"/query", body, &resp); err != nil {
		return nil, err
	}
	matches := make([]vectorindex.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, vectorindex.Match{VectorID: m.ID, Score: m.Score})
	}
	return matches, nil
}

type upsertVector struct {
	ID           string                 `json:"id"`
	Values       []float32              `json:"values"`
	SparseValues *sparseValues          `json:"sparseValues,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

func (c *Client) Upsert(ctx context.Context, vectors []vectorindex.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	payload := make([]upsertVector, 0, len(vectors))
	for _, v := range vectors {
		uv := upsertVector{ID: v.ID, Values: v.Dense, Metadata: v.Metadata}
		if v.Sparse != nil {
			uv.SparseValues = &sparseValues{Indices: v.Sparse.Indices, Values: v.Sparse.Values}
		}
		payload = append(payload, uv)
	}
	return c.postJSON(ctx, c.host+"/vectors/upsert", map[string]interface{}{"vectors": payload}, nil)
}

type embedRequest struct {
	Model      string                 `json:"model"`
	Inputs     []embedInput           `json:"inputs"`
	Parameters map[string]interface{} `json:"parameters"`
}

type embedInput struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Data []struct {
		SparseIndices []uint32  `json:"sparse_indices"`
		SparseValues  []float32 `json:"sparse_values"`
	} `json:"data"`
}

// SparseEmbed turns text into the plain index/value pair shape via the
// hosted sparse model.
func (c *Client) SparseEmbed(ctx context.Context, text string, forQuery bool) (*model.SparseVector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}
	inputType := "passage"
	if forQuery {
		inputType = "query"
	}
	body := embedRequest{
		Model:  c.sparseModel,
		Inputs: []embedInput{{Text: text}},
		Parameters: map[string]interface{}{
			"input_type": inputType,
			"truncate":   "END",
		},
	}
	var resp embedResponse
	if err := c.postJSON(ctx, c.controlURL+"/embed", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no sparse embedding in response")
	}
	data := resp.Data[0]
	if len(data.SparseIndices) != len(data.SparseValues) {
		return nil, fmt.Errorf("sparse indices/values length mismatch: %d != %d", len(data.SparseIndices), len(data.SparseValues))
	}
	return &model.SparseVector{Indices: data.SparseIndices, Values: data.SparseValues}, nil
}

type statsResponse struct {
	Dimension        int   `json:"dimension"`
	TotalVectorCount int64 `json:"totalVectorCount"`
}

func (c *Client) Stats(ctx context.Context) (vectorindex.Stats, error) {
	var resp statsResponse
	if err := c.postJSON(ctx, c.host+"/describe_index_stats", map[string]interface{}{}, &resp); err != nil {
		return vectorindex.Stats{}, err
	}
	return vectorindex.Stats{Dimension: resp.Dimension, VectorCount: resp.TotalVectorCount}, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
