package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// LocalArtifactRoute is where LocalUploader artifacts are served from.
const LocalArtifactRoute = "/static/certificates"

const cloudinaryFolder = "course_certificates"

type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores a rendered artifact and returns a locator for it.
type Uploader interface {
	Upload(ctx context.Context, artifact Artifact) (string, error)
}

type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cloudinaryURL string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, artifact Artifact) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resourceType := "raw"
	if strings.HasPrefix(artifact.ContentType, "image/") {
		resourceType = "image"
	}

	params := uploader.UploadParams{
		PublicID:     "certificates/" + strings.TrimSuffix(artifact.Name, filepath.Ext(artifact.Name)),
		Folder:       cloudinaryFolder,
		ResourceType: resourceType,
	}

	result, err := u.cld.Upload.Upload(ctx, bytes.NewReader(artifact.Data), params)
	if err != nil {
		return "", fmt.Errorf("upload to cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("upload to cloudinary: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

// LocalUploader writes artifacts to disk for deployments without Cloudinary.
type LocalUploader struct {
	Dir     string
	BaseURL string
}

func (u *LocalUploader) Upload(_ context.Context, artifact Artifact) (string, error) {
	name := filepath.Base(artifact.Name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid artifact name %q", artifact.Name)
	}
	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(u.Dir, name), artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return strings.TrimRight(u.BaseURL, "/") + LocalArtifactRoute + "/" + name, nil
}
