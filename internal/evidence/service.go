// Package evidence manages the supporting files behind activity data: meter
// readings, invoices, lab analyses. Every file is hashed on ingest and the
// hash stored next to the object key, so a verifier can prove the file
// backing a calculation has not changed since it was attached.
package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"ghg-ledger/inventory-engine/internal/inventory"
	"ghg-ledger/inventory-engine/internal/store"
	"ghg-ledger/inventory-engine/pkg/storage"
)

type Service struct {
	repo    store.Repository
	objects storage.S3Client
	bucket  string
	logger  *zap.Logger
}

func NewService(repo store.Repository, objects storage.S3Client, bucket string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, objects: objects, bucket: bucket, logger: logger}
}

// AttachRequest describes one evidence file to store.
type AttachRequest struct {
	ActivityID uuid.UUID
	FileName   string
	Content    io.Reader
	Tag        string
	UploadedBy string
}

// Attach hashes the file, uploads it and records the attachment with an
// audit event. The activity must exist.
func (s *Service) Attach(ctx context.Context, req AttachRequest) (*inventory.Attachment, error) {
	if req.FileName == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if req.Content == nil {
		return nil, fmt.Errorf("file content is required")
	}
	if _, err := s.repo.GetActivity(ctx, req.ActivityID); err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	data, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	attachmentID := uuid.New()
	key := objectKey(req.ActivityID, attachmentID, req.FileName)
	if err := s.objects.Upload(ctx, s.bucket, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store evidence file: %w", err)
	}

	attachment := &inventory.Attachment{
		ID:         attachmentID,
		ActivityID: req.ActivityID,
		FileName:   req.FileName,
		ObjectKey:  key,
		SHA256:     digest,
		SizeBytes:  int64(len(data)),
		Tag:        req.Tag,
		UploadedBy: req.UploadedBy,
	}
	if err := s.repo.CreateAttachment(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to record attachment: %w", err)
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"activity_id": req.ActivityID,
		"file_name":   req.FileName,
		"sha256":      digest,
		"size_bytes":  len(data),
	})
	event := &inventory.AuditEvent{
		Actor:    req.UploadedBy,
		Action:   "attach_evidence",
		Entity:   "attachment",
		EntityID: attachment.ID,
		Detail:   datatypes.JSON(detail),
	}
	if err := s.repo.AppendAudit(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append audit event: %w", err)
	}

	s.logger.Info("evidence attached",
		zap.String("activity_id", req.ActivityID.String()),
		zap.String("attachment_id", attachment.ID.String()),
		zap.String("sha256", digest),
		zap.Int("size_bytes", len(data)))

	return attachment, nil
}

// List returns the attachments of one activity.
func (s *Service) List(ctx context.Context, activityID uuid.UUID) ([]inventory.Attachment, error) {
	return s.repo.ListAttachments(ctx, activityID)
}

// Download streams the stored file.
func (s *Service) Download(ctx context.Context, attachment inventory.Attachment) (io.ReadCloser, error) {
	return s.objects.Download(ctx, s.bucket, attachment.ObjectKey)
}

// Verify re-downloads the file and checks it still matches the hash recorded
// at attach time.
func (s *Service) Verify(ctx context.Context, attachment inventory.Attachment) (bool, error) {
	body, err := s.objects.Download(ctx, s.bucket, attachment.ObjectKey)
	if err != nil {
		return false, fmt.Errorf("failed to download evidence file: %w", err)
	}
	defer body.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, body); err != nil {
		return false, fmt.Errorf("failed to hash evidence file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)) == attachment.SHA256, nil
}

// Link returns a time-limited URL for the stored file.
func (s *Service) Link(ctx context.Context, attachment inventory.Attachment, ttl time.Duration) (string, error) {
	return s.objects.GetPresignedURL(ctx, s.bucket, attachment.ObjectKey, ttl)
}

func objectKey(activityID, attachmentID uuid.UUID, fileName string) string {
	return fmt.Sprintf("activities/%s/evidence/%s/%s", activityID, attachmentID, fileName)
}
