package retrieval

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// Match is one nearest-neighbor result with its metadata
type Match struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Item is one vector to upsert
type Item struct {
	ID       string
	Values   []float32
	Metadata map[string]interface{}
}

// VectorIndex is the narrow contract the RAG path and the batch indexer
// need from a vector database.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, items []Item) error
}

// PineconeIndex implements VectorIndex against one Pinecone index namespace
type PineconeIndex struct {
	conn *pinecone.IndexConnection
}

// NewPineconeIndex connects to a Pinecone index host
func NewPineconeIndex(apiKey, host, namespace string) (*PineconeIndex, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}

	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("connect to pinecone index: %w", err)
	}

	return &PineconeIndex{conn: conn}, nil
}

// Query implements VectorIndex
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	res, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query pinecone: %w", err)
	}

	matches := make([]Match, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m.Vector == nil {
			continue
		}
		match := Match{ID: m.Vector.Id, Score: m.Score}
		if m.Vector.Metadata != nil {
			match.Metadata = m.Vector.Metadata.AsMap()
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// Upsert implements VectorIndex
func (p *PineconeIndex) Upsert(ctx context.Context, items []Item) error {
	vectors := make([]*pinecone.Vector, 0, len(items))
	for _, it := range items {
		values := it.Values
		vec := &pinecone.Vector{Id: it.ID, Values: &values}
		if it.Metadata != nil {
			md, err := structpb.NewStruct(it.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", it.ID, err)
			}
			vec.Metadata = md
		}
		vectors = append(vectors, vec)
	}

	if _, err := p.conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}
