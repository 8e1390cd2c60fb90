// Package loader turns uploaded files into documents.
package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdfchat/internal/domain"
)

// FileLoader picks a reader by file extension.
type FileLoader struct{}

func New() *FileLoader { return &FileLoader{} }

// Load reads path into one or more documents. PDFs yield one document per page
// with text; plain text files yield a single document.
func (l *FileLoader) Load(ctx context.Context, path string) ([]domain.Document, error) {
	var (
		docs []domain.Document
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		docs, err = loadPDF(ctx, path)
	case ".txt", ".md", ".text":
		docs, err = loadText(path)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, filepath.Base(path))
	}
	return docs, nil
}

func loadText(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []domain.Document{{ID: hashString(path), Source: path, Content: content}}, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
