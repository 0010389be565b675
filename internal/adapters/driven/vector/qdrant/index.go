// Package qdrant implements the vector index on a Qdrant server over
// its REST API. Point IDs are derived deterministically from chunk IDs,
// so re-indexing the same registers overwrites points instead of
// duplicating them.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const maxErrorBodyBytes = 1024

// pointIDNamespace seeds the deterministic UUIDv5 point IDs.
var pointIDNamespace = uuid.MustParse("8f3c9d74-5b21-4f0a-9c66-2d40f1b7a9e3")

// Index talks to one Qdrant collection.
type Index struct {
	baseURL    string
	collection string
	dims       int
	http       *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewIndex connects to the collection at baseURL, creating it with
// cosine distance when it does not exist yet.
func NewIndex(baseURL, collection string, dims int) (*Index, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("vector dimensions required")
	}

	idx := &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		dims:       dims,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
	if err := idx.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the collection on first use and validates
// the vector size on every start.
func (x *Index) ensureCollection(ctx context.Context) error {
	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}

	err := x.doJSON(ctx, http.MethodGet, x.collectionPath(""), nil, &info)
	if err == nil {
		if size := info.Config.Params.Vectors.Size; size != 0 && size != x.dims {
			return fmt.Errorf("collection %q vector size mismatch: expected=%d actual=%d",
				x.collection, x.dims, size)
		}
		return nil
	}

	logger.Debug("Creating qdrant collection %s (%d dims)", x.collection, x.dims)
	create := map[string]any{
		"vectors": map[string]any{
			"size":     x.dims,
			"distance": "Cosine",
		},
	}
	if err := x.doJSON(ctx, http.MethodPut, x.collectionPath(""), create, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", x.collection, err)
	}
	return nil
}

// Upsert writes records as points. The same chunk ID always maps to
// the same point ID, making the write idempotent.
func (x *Index) Upsert(ctx context.Context, records []driven.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if x.dims > 0 && len(r.Vector) != x.dims {
			return fmt.Errorf("record %q dimension mismatch: expected=%d got=%d",
				r.ID, x.dims, len(r.Vector))
		}
		points = append(points, map[string]any{
			"id":     pointID(r.ID),
			"vector": r.Vector,
			"payload": map[string]any{
				"chunk_id":    r.ID,
				"vendor":      r.Metadata.Vendor,
				"device":      r.Metadata.Device,
				"peripheral":  r.Metadata.Peripheral,
				"register":    r.Metadata.Register,
				"address":     r.Metadata.Address,
				"source_file": r.Metadata.SourceFile,
			},
		})
	}

	req := map[string]any{"points": points}
	if err := x.doJSON(ctx, http.MethodPut, x.collectionPath("/points?wait=true"), req, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the k nearest points, restricted by the filter.
func (x *Index) Search(ctx context.Context, vector []float32, filter domain.SearchFilter, k int) ([]driven.VectorHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if k <= 0 {
		k = 10
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := translateFilter(filter); f != nil {
		req["filter"] = f
	}

	var items []searchResultItem
	if err := x.doJSON(ctx, http.MethodPost, x.collectionPath("/points/search"), req, &items); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(items))
	for _, item := range items {
		id, _ := item.Payload["chunk_id"].(string)
		if id == "" {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ID:       id,
			Score:    item.Score,
			Metadata: payloadMetadata(item.Payload),
		})
	}
	return hits, nil
}

// CountBySource returns how many points came from one source file.
func (x *Index) CountBySource(ctx context.Context, sourceFile string) (int, error) {
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{matchCondition("source_file", sourceFile)},
		},
		"exact": true,
	}

	var result struct {
		Count int `json:"count"`
	}
	if err := x.doJSON(ctx, http.MethodPost, x.collectionPath("/points/count"), req, &result); err != nil {
		return 0, fmt.Errorf("count points for %s: %w", sourceFile, err)
	}
	return result.Count, nil
}

// DeleteBySource removes all points that came from one source file.
func (x *Index) DeleteBySource(ctx context.Context, sourceFile string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{matchCondition("source_file", sourceFile)},
		},
	}
	if err := x.doJSON(ctx, http.MethodPost, x.collectionPath("/points/delete?wait=true"), req, nil); err != nil {
		return fmt.Errorf("delete points for %s: %w", sourceFile, err)
	}
	return nil
}

// Close releases nothing; the HTTP client holds no persistent state.
func (x *Index) Close() error {
	return nil
}

func (x *Index) collectionPath(suffix string) string {
	return "/collections/" + x.collection + suffix
}

func (x *Index) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.http.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant status=%d body=%q", resp.StatusCode, truncateBody(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if msg := envelopeError(env.Status); msg != "" {
		return fmt.Errorf("qdrant: %s", msg)
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// envelopeError extracts a failure message from the response status,
// which Qdrant renders either as the string "ok" or an error object.
func envelopeError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return s
	}

	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return "status=" + status
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

// pointID derives the stable UUID Qdrant point ID for a chunk.
func pointID(chunkID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(chunkID)).String()
}

func translateFilter(f domain.SearchFilter) map[string]any {
	if f.IsZero() {
		return nil
	}
	var must []any
	if f.Vendor != "" {
		must = append(must, matchCondition("vendor", f.Vendor))
	}
	if f.Device != "" {
		must = append(must, matchCondition("device", f.Device))
	}
	return map[string]any{"must": must}
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func payloadMetadata(payload map[string]any) domain.ChunkMetadata {
	m := domain.ChunkMetadata{}
	if v, ok := payload["vendor"].(string); ok {
		m.Vendor = v
	}
	if v, ok := payload["device"].(string); ok {
		m.Device = v
	}
	if v, ok := payload["peripheral"].(string); ok {
		m.Peripheral = v
	}
	if v, ok := payload["register"].(string); ok {
		m.Register = v
	}
	if v, ok := payload["source_file"].(string); ok {
		m.SourceFile = v
	}
	if v, ok := payload["address"].(float64); ok {
		m.Address = uint64(v)
	}
	return m
}
