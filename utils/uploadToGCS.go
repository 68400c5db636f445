package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// Set GCS_CREDENTIALS_JSON to provide explicit JSON locally.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func gcsBucket() (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucketName, nil
}

// UploadBytesToGCS writes data to objectName and returns its gs:// URI.
func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	bucketName, err := gcsBucket()
	if err != nil {
		return "", err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload bytes to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return GCSObjectURI(bucketName, objectName), nil
}

func GCSObjectURI(bucketName, objectName string) string {
	return "gs://" + bucketName + "/" + strings.TrimPrefix(objectName, "/")
}
