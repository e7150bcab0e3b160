package core

import "errors"

// MaxUploadBytes caps every stored file.
const MaxUploadBytes = 5 << 20

var (
	ErrEmptyFile           = errors.New("empty file")
	ErrFileTooLarge        = errors.New("file exceeds 5MB")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

var uploadExtensions = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// ValidateUpload checks size and detected MIME type of a file before it is stored.
func ValidateUpload(size int64, contentType string) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxUploadBytes {
		return ErrFileTooLarge
	}
	if _, ok := uploadExtensions[contentType]; !ok {
		return ErrUnsupportedFileType
	}
	return nil
}

// ValidateImage is ValidateUpload restricted to JPEG and PNG.
func ValidateImage(size int64, contentType string) error {
	if err := ValidateUpload(size, contentType); err != nil {
		return err
	}
	if contentType == "application/pdf" {
		return ErrUnsupportedFileType
	}
	return nil
}

// UploadExtension returns the file extension stored for a content type.
func UploadExtension(contentType string) string {
	return uploadExtensions[contentType]
}
