// Package qdrantstore adapts a Qdrant collection to the core's
// vectorstore.Store interface, grounded on Tangerg-lynx's
// ai/providers/vectorstores/qdrant store: same point-upsert/query/delete
// shape, simplified to the core's flat string-metadata payload instead
// of the teacher's arbitrary document.Metadata map.
package qdrantstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"queryresolve/internal/vectorstore"
)

// Config describes how to reach and initialise a Qdrant collection.
type Config struct {
	Client           *qdrant.Client
	CollectionName   string
	Dimension        uint64
	InitializeSchema bool
}

// Store adapts a Qdrant collection to vectorstore.Store.
type Store struct {
	client         *qdrant.Client
	collectionName string
	dimension      uint64
}

// New connects a Store to an existing (or, if InitializeSchema is set,
// lazily created) Qdrant collection configured for cosine distance.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("qdrantstore: client is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrantstore: collection name is required")
	}

	s := &Store{client: cfg.Client, collectionName: cfg.CollectionName, dimension: cfg.Dimension}

	if cfg.InitializeSchema {
		if err := s.ensureCollection(ctx); err != nil {
			return nil, fmt.Errorf("qdrantstore: failed to initialize collection: %w", err)
		}
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (s *Store) Insert(ctx context.Context, id string, vec []float32, metadata map[string]string) error {
	return s.InsertBatch(ctx, []string{id}, [][]float32{vec}, []map[string]string{metadata})
}

func (s *Store) InsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadatas []map[string]string) error {
	points := make([]*qdrant.PointStruct, 0, len(ids))
	for i, id := range ids {
		var meta map[string]string
		if i < len(metadatas) {
			meta = metadatas[i]
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payloadFromMetadata(meta),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: upsert of %d points failed: %w", len(points), err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vec []float32, filter map[string]string, limit int) ([]vectorstore.Record, error) {
	if limit <= 0 {
		limit = 10
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}
	if len(filter) > 0 {
		query.Filter = filterFromMetadata(filter)
	}

	scored, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: query failed: %w", err)
	}

	records := make([]vectorstore.Record, 0, len(scored))
	for _, point := range scored {
		records = append(records, vectorstore.Record{
			ID:       point.GetId().GetUuid(),
			Score:    float64(point.GetScore()),
			Vector:   point.GetVectors().GetVector().GetData(),
			Metadata: metadataFromPayload(point.GetPayload()),
		})
	}
	return records, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, filter map[string]string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionName,
		Points:         qdrant.NewPointsSelectorFilter(filterFromMetadata(filter)),
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: delete failed: %w", err)
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context) (vectorstore.Stats, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		return vectorstore.Stats{}, fmt.Errorf("qdrantstore: get collection info failed: %w", err)
	}
	return vectorstore.Stats{
		TotalVectors: int(info.GetPointsCount()),
		Dimension:    int(s.dimension),
	}, nil
}

func payloadFromMetadata(metadata map[string]string) map[string]*qdrant.Value {
	if len(metadata) == 0 {
		return nil
	}
	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		payload[k] = qdrant.NewValueString(v)
	}
	return payload
}

func metadataFromPayload(payload map[string]*qdrant.Value) map[string]string {
	if len(payload) == 0 {
		return nil
	}
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		metadata[k] = v.GetStringValue()
	}
	return metadata
}

func filterFromMetadata(filter map[string]string) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}
