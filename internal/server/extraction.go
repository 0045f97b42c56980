package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/common"
	"github.com/joseph-ayodele/doc-intake/internal/export"
	"github.com/joseph-ayodele/doc-intake/internal/ingest"
	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
	"github.com/joseph-ayodele/doc-intake/internal/validate"
)

// Extractor runs one document through the pipeline; *pipeline.Pipeline implements it.
type Extractor interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.ExtractionResult, error)
}

// Store persists and serves extraction outcomes; repository.ExtractionRepository implements it.
type Store interface {
	Record(ctx context.Context, res *pipeline.ExtractionResult, runErr error, at time.Time) error
	GetLatestExtraction(ctx context.Context, sha256 string) (*pipeline.ExtractionResult, error)
}

type ServiceDeps struct {
	Pipeline Extractor
	Store    Store           // optional
	Ingestor ingest.Ingestor // optional
	Exporter *export.Service // optional
	Logger   *slog.Logger
}

type ExtractionService struct {
	pipeline Extractor
	store    Store
	ingestor ingest.Ingestor
	exporter *export.Service
	logger   *slog.Logger
}

func NewExtractionService(d ServiceDeps) *ExtractionService {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &ExtractionService{
		pipeline: d.Pipeline,
		store:    d.Store,
		ingestor: d.Ingestor,
		exporter: d.Exporter,
		logger:   d.Logger,
	}
}

// Extract runs the pipeline synchronously and returns the ExtractionResult as a Struct.
func (s *ExtractionService) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := inputFromStruct(req)
	if err != nil {
		s.logger.Warn("extract.bad_request", "error", err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ctx = common.WithRequestID(ctx, common.RequestIDFromContext(ctx))

	start := time.Now()
	res, runErr := s.pipeline.Run(ctx, in)
	if s.store != nil {
		if err := s.store.Record(ctx, res, runErr, start.UTC()); err != nil {
			s.logger.Error("extract.record_failed", "path", in.Path, "error", err)
		}
	}
	if runErr != nil {
		s.logger.Info("extract.failed", "path", in.Path, "error", runErr, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.ToStatus(runErr)
	}
	return toStruct(res)
}

// GetExtraction returns the newest stored result for {"sha256": ...}.
func (s *ExtractionService) GetExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unimplemented, "no extraction store configured")
	}
	sha := strings.ToLower(strings.TrimSpace(stringField(req, "sha256")))
	if sha == "" {
		return nil, common.InvalidArgumentError("sha256 is required")
	}
	res, err := s.store.GetLatestExtraction(ctx, sha)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("get_extraction.failed", "sha256", sha, "error", err)
		}
		return nil, common.ToStatus(err)
	}
	return toStruct(res)
}

// IngestFile fingerprints {"path": ...} and queues it for background extraction.
func (s *ExtractionService) IngestFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.ingestor == nil {
		return nil, status.Error(codes.Unimplemented, "ingest is not enabled")
	}
	path := strings.TrimSpace(stringField(req, "path"))
	if path == "" {
		return nil, common.InvalidArgumentError("path is required")
	}
	r, err := s.ingestor.IngestPath(ctx, path)
	if err != nil {
		s.logger.Warn("ingest_file.failed", "path", path, "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"sourcePath":   r.SourcePath,
		"fileId":       r.FileID,
		"sha256":       r.SHA256,
		"deduplicated": r.Deduplicated,
		"queued":       r.Queued,
		"seenAt":       r.SeenAt.UTC().Format(time.RFC3339),
	})
}

// ExportReview returns {"xlsx": base64} for stored extractions matching the filter.
func (s *ExtractionService) ExportReview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.exporter == nil {
		return nil, status.Error(codes.Unimplemented, "export is not enabled")
	}
	filter := repository.ListFilter{
		DocumentType:    constants.DocumentType(strings.TrimSpace(stringField(req, "documentType"))),
		NeedsReviewOnly: boolField(req, "needsReviewOnly"),
		Limit:           int(numberField(req, "limit")),
	}
	if filter.DocumentType != "" && constants.ParseDocumentType(string(filter.DocumentType)) != filter.DocumentType {
		return nil, common.InvalidArgumentErrorf("unknown documentType %q", filter.DocumentType)
	}
	b, err := s.exporter.ExportXLSX(ctx, filter)
	if err != nil {
		s.logger.Error("export_review.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"xlsx":      base64.StdEncoding.EncodeToString(b),
		"sizeBytes": float64(len(b)),
	})
}

func inputFromStruct(req *structpb.Struct) (pipeline.Input, error) {
	in := pipeline.Input{
		Path:                strings.TrimSpace(stringField(req, "path")),
		ClaimedMime:         stringField(req, "claimedMime"),
		Provider:            stringField(req, "provider"),
		Language:            stringField(req, "language"),
		ConfidenceThreshold: numberField(req, "confidenceThreshold"),
	}
	if data := stringField(req, "data"); data != "" {
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return in, fmt.Errorf("data must be base64: %w", err)
		}
		in.Data = b
	}
	if in.Path == "" && in.Data == nil {
		return in, errors.New("path or data is required")
	}
	if in.ConfidenceThreshold < 0 || in.ConfidenceThreshold > 1 {
		return in, fmt.Errorf("confidenceThreshold must be within [0, 1], got %v", in.ConfidenceThreshold)
	}
	if p := req.GetFields()["policy"].GetStructValue(); p != nil {
		policy := validate.Policy{
			MaxFileSize:       int64(numberField(p, "maxFileSize")),
			AllowedMimes:      listField(p, "allowedMimes"),
			AllowedExtensions: listField(p, "allowedExtensions"),
		}
		for i, e := range policy.AllowedExtensions {
			policy.AllowedExtensions[i] = constants.NormalizeExt(e)
		}
		in.Policy = &policy
	}
	return in, nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

func boolField(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

func listField(s *structpb.Struct, key string) []string {
	var out []string
	for _, v := range s.GetFields()[key].GetListValue().GetValues() {
		if str := strings.TrimSpace(v.GetStringValue()); str != "" {
			out = append(out, str)
		}
	}
	return out
}

// toStruct converts a JSON-tagged value into a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}
