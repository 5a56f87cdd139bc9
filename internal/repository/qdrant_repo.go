package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/timmy/shotlens/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 1024

	payloadScreenshotID = "screenshot_id"
	payloadBucket       = "bucket"
	payloadRationale    = "rationale"
	payloadPlaces       = "places"
	payloadProducts     = "products"
	payloadThumbnailKey = "thumbnail_key"
)

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // enables TLS
	UseTLS          bool
	VectorDimension int
}

// apiKeyInterceptor attaches the api-key header to every unary call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository stores one vector per screenshot, keyed by the screenshot id.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository dials Qdrant. Local instances use an insecure channel;
// hosted instances use TLS 1.3 and the api-key header.
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	conn, err := grpc.NewClient(addr, dialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

func dialOptions(cfg *QdrantConnectionConfig) []grpc.DialOption {
	if !cfg.UseTLS && cfg.APIKey == "" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})),
	}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	return opts
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection when missing and checks the vector size when present.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		FieldName:      payloadBucket,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index bucket field: %w", err)
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// ScreenshotPayload is the payload stored alongside each screenshot vector.
type ScreenshotPayload struct {
	ScreenshotID string
	Bucket       string
	Rationale    string
	Places       []string
	Products     []string
	ThumbnailKey string
}

// PayloadFromScreenshot builds the vector payload for a screenshot record.
func PayloadFromScreenshot(s *domain.Screenshot) *ScreenshotPayload {
	places := make([]string, 0, len(s.Extracted.Places))
	for _, p := range s.Extracted.Places {
		places = append(places, p.Name)
	}
	return &ScreenshotPayload{
		ScreenshotID: s.ID,
		Bucket:       string(s.Bucket),
		Rationale:    s.Intent.Rationale,
		Places:       places,
		Products:     append([]string(nil), s.Extracted.Products...),
		ThumbnailKey: s.ThumbnailKey,
	}
}

// Upsert inserts or replaces the vector for a screenshot.
func (r *QdrantRepository) Upsert(ctx context.Context, vector []float32, payload *ScreenshotPayload) error {
	id, err := pointID(payload.ScreenshotID)
	if err != nil {
		return err
	}
	if len(vector) != r.vectorDimension {
		return fmt.Errorf("vector has %d dimensions, collection expects %d", len(vector), r.vectorDimension)
	}

	_, err = r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points: []*pb.PointStruct{
			{
				Id: id,
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
				},
				Payload: payload.toValues(),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

func pointID(screenshotID string) (*pb.PointId, error) {
	uid, err := uuid.Parse(screenshotID)
	if err != nil {
		return nil, fmt.Errorf("invalid point ID: %w", err)
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}}, nil
}

func (p *ScreenshotPayload) toValues() map[string]*pb.Value {
	return map[string]*pb.Value{
		payloadScreenshotID: stringValue(p.ScreenshotID),
		payloadBucket:       stringValue(p.Bucket),
		payloadRationale:    stringValue(p.Rationale),
		payloadPlaces:       listValue(p.Places),
		payloadProducts:     listValue(p.Products),
		payloadThumbnailKey: stringValue(p.ThumbnailKey),
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func listValue(items []string) *pb.Value {
	values := make([]*pb.Value, len(items))
	for i, item := range items {
		values[i] = stringValue(item)
	}
	return &pb.Value{
		Kind: &pb.Value_ListValue{
			ListValue: &pb.ListValue{Values: values},
		},
	}
}

// VectorMatch is one scored hit from the vector index.
type VectorMatch struct {
	ScreenshotID string
	Score        float32
	Payload      *ScreenshotPayload
}

// Search returns the nearest screenshots to vector by cosine similarity, best first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - vector: query embedding.
//   - topK: maximum number of hits.
//   - bucket: restrict hits to one bucket; empty means all buckets.
//   - scoreThreshold: minimum score; zero disables the cut-off.
//
// Returns:
//   - []VectorMatch: hits ordered by descending score.
//   - error: non-nil if the call fails.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, bucket string, scoreThreshold float32) ([]VectorMatch, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         bucketFilter(bucket),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if scoreThreshold > 0 {
		req.ScoreThreshold = &scoreThreshold
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]VectorMatch, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		payload := parsePayload(scored.GetPayload())
		id := scored.GetId().GetUuid()
		if payload != nil && payload.ScreenshotID != "" {
			id = payload.ScreenshotID
		}
		matches = append(matches, VectorMatch{ScreenshotID: id, Score: scored.GetScore(), Payload: payload})
	}
	return matches, nil
}

func bucketFilter(bucket string) *pb.Filter {
	if bucket == "" {
		return nil
	}
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: payloadBucket,
						Match: &pb.Match{
							MatchValue: &pb.Match_Keyword{Keyword: bucket},
						},
					},
				},
			},
		},
	}
}

func parsePayload(payload map[string]*pb.Value) *ScreenshotPayload {
	if payload == nil {
		return nil
	}
	return &ScreenshotPayload{
		ScreenshotID: payload[payloadScreenshotID].GetStringValue(),
		Bucket:       payload[payloadBucket].GetStringValue(),
		Rationale:    payload[payloadRationale].GetStringValue(),
		Places:       stringList(payload[payloadPlaces]),
		Products:     stringList(payload[payloadProducts]),
		ThumbnailKey: payload[payloadThumbnailKey].GetStringValue(),
	}
}

func stringList(v *pb.Value) []string {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}
