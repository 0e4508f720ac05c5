// Package vectorstore provides the Qdrant-backed vector index used for
// memory similarity retrieval. Each persona gets its own collection so a
// search can never cross persona boundaries.
package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/reverie-ai/reverie/internal/memory"
)

// Config holds connection settings for a Qdrant instance.
type Config struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Dimension int    `json:"dimension"`
}

// Client wraps gRPC connections to Qdrant's collections and points services
// and implements memory.Index.
type Client struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	dimension   uint64

	mu      sync.Mutex
	ensured map[string]bool
}

// NewClient dials the Qdrant gRPC endpoint and returns a ready Client.
func NewClient(cfg Config) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	return &Client{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		dimension:   uint64(cfg.Dimension),
		ensured:     make(map[string]bool),
	}, nil
}

// collectionFor maps a persona to its collection name.
func collectionFor(personaID string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, personaID)
	return "memories_" + sanitized
}

// ensureCollection creates the persona's collection with cosine distance
// if it does not already exist.
func (c *Client) ensureCollection(ctx context.Context, name string, dim uint64) error {
	c.mu.Lock()
	done := c.ensured[name]
	c.mu.Unlock()
	if done {
		return nil
	}

	_, err := c.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
	if err != nil {
		_, err = c.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: name,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     dim,
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}

	c.mu.Lock()
	c.ensured[name] = true
	c.mu.Unlock()
	return nil
}

// Upsert inserts or updates a memory embedding in the persona's collection.
func (c *Client) Upsert(ctx context.Context, personaID, id string, vector []float32) error {
	coll := collectionFor(personaID)
	dim := c.dimension
	if dim == 0 {
		dim = uint64(len(vector))
	}
	if err := c.ensureCollection(ctx, coll, dim); err != nil {
		return err
	}

	_, err := c.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: coll,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", coll, err)
	}
	return nil
}

// Search performs a nearest-neighbor search within the persona's collection.
func (c *Client) Search(ctx context.Context, personaID string, vector []float32, limit uint64) ([]memory.Hit, error) {
	coll := collectionFor(personaID)
	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: coll,
		Vector:         vector,
		Limit:          limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", coll, err)
	}
	hits := make([]memory.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, memory.Hit{ID: r.Id.GetUuid(), Score: r.Score})
	}
	return hits, nil
}

// Close tears down the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
