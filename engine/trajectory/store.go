// Package trajectory archives simulated protein trajectories in Qdrant as
// fixed-length vectors, so past runs can be searched for dynamics similar
// to a new one.
package trajectory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Store is the sole owner of all Qdrant operations.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("trajectory: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("trajectory: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(VectorDims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("trajectory: create collection %s: %w", s.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (s *Store) DeleteCollection(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("trajectory: delete collection %s: %w", s.collection, err)
	}
	return nil
}

// Archive upserts one point per trajectory. Point IDs derive from the
// request ID and protein name, so re-archiving a run overwrites its own
// points instead of duplicating them.
func (s *Store) Archive(ctx context.Context, requestID string, trajectories []Trajectory) error {
	if len(trajectories) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(trajectories))
	for i, tr := range trajectories {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(requestID, tr.Protein)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: Embed(tr.Series)},
				},
			},
			Payload: map[string]*pb.Value{
				"request_id": strValue(requestID),
				"protein":    strValue(tr.Protein),
				"cds":        strValue(tr.CDS),
				"circuit":    strValue(tr.Circuit),
				"kind":       strValue("trajectory"),
				"final":      {Kind: &pb.Value_DoubleValue{DoubleValue: tr.Final}},
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("trajectory: upsert %d points: %w", len(points), err)
	}
	return nil
}

// DeleteByRequestID removes every point archived for one run.
func (s *Store) DeleteByRequestID(ctx context.Context, requestID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("request_id", requestID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("trajectory: delete by request_id %s: %w", requestID, err)
	}
	return nil
}

// SearchSimilar finds archived trajectories whose shape is closest to the
// given series, optionally filtered by payload fields (circuit, cds, ...).
func (s *Store) SearchSimilar(ctx context.Context, series []float64, topK int, filters map[string]string) ([]Match, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         Embed(series),
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, fieldMatch(k, v))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("trajectory: search: %w", err)
	}

	matches := make([]Match, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		m := Match{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
			Meta:  make(map[string]string),
		}
		for k, val := range r.GetPayload() {
			v := val.GetStringValue()
			switch k {
			case "request_id":
				m.RequestID = v
			case "protein":
				m.Protein = v
			case "cds":
				m.CDS = v
			case "circuit":
				m.Circuit = v
			default:
				m.Meta[k] = v
			}
		}
		matches[i] = m
	}
	return matches, nil
}

// PointID derives the deterministic UUID for one run/protein pair.
func PointID(requestID, protein string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(requestID+"/"+protein)).String()
}

func strValue(v string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
