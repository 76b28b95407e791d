package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// EvidenceStore keeps files attached to disputes.
type EvidenceStore interface {
	UploadEvidence(ctx context.Context, file *multipart.FileHeader, bookingID string) (*UploadResult, error)
	DeleteFile(ctx context.Context, publicID string) error
}

type CloudinaryService struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryService(cloudName, apiKey, apiSecret, folder string) (*CloudinaryService, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("Cloudinary credentials not set in environment variables")
	}

	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &CloudinaryService{
		cld:    cld,
		folder: folder,
	}, nil
}

type UploadResult struct {
	URL          string `json:"url"`
	SecureURL    string `json:"secure_url"`
	PublicID     string `json:"public_id"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type"`
	Bytes        int    `json:"bytes"`
}

var evidenceFormats = []string{"jpg", "jpeg", "png", "pdf", "mp4", "mov"}

// UploadEvidence uploads a dispute evidence file under the booking's folder
func (s *CloudinaryService) UploadEvidence(ctx context.Context, file *multipart.FileHeader, bookingID string) (*UploadResult, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	uploadParams := uploader.UploadParams{
		Folder:         s.folder + "/" + bookingID,
		PublicID:       evidencePublicID(file.Filename, time.Now()),
		ResourceType:   "auto", // images, PDFs and short videos
		AllowedFormats: evidenceFormats,
	}

	result, err := s.cld.Upload.Upload(ctx, src, uploadParams)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}

	return &UploadResult{
		URL:          result.URL,
		SecureURL:    result.SecureURL,
		PublicID:     result.PublicID,
		Format:       result.Format,
		ResourceType: result.ResourceType,
		Bytes:        result.Bytes,
	}, nil
}

// DeleteFile deletes a file from Cloudinary
func (s *CloudinaryService) DeleteFile(ctx context.Context, publicID string) error {
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from Cloudinary: %w", err)
	}
	return nil
}

// evidencePublicID is "<unix>_<name without extension>".
func evidencePublicID(filename string, at time.Time) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%d_%s", at.Unix(), base)
}
