package foundry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/agentoven/purview-router/pkg/models"
)

// FilePurpose is the purpose tag of files consumed by agents.
const FilePurpose = "assistants"

// UploadFile uploads content as a multipart form.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (*models.File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", FilePurpose); err != nil {
		return nil, fmt.Errorf("foundry: write purpose field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("foundry: create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("foundry: read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("foundry: close multipart body: %w", err)
	}

	var f models.File
	if err := c.send(ctx, http.MethodPost, "/files", nil, &buf, mw.FormDataContentType(), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFile fetches file metadata.
func (c *Client) GetFile(ctx context.Context, fileID string) (*models.File, error) {
	var f models.File
	if err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID), nil, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteFile removes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, nil, nil)
}

type createVectorStoreRequest struct {
	Name    string   `json:"name"`
	FileIDs []string `json:"file_ids"`
}

// CreateVectorStore builds a search index over the given files.
func (c *Client) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (*models.VectorStore, error) {
	var vs models.VectorStore
	req := createVectorStoreRequest{Name: name, FileIDs: fileIDs}
	if err := c.do(ctx, http.MethodPost, "/vector_stores", nil, req, &vs); err != nil {
		return nil, err
	}
	return &vs, nil
}

// GetVectorStore fetches the state of a vector store.
func (c *Client) GetVectorStore(ctx context.Context, vectorStoreID string) (*models.VectorStore, error) {
	var vs models.VectorStore
	if err := c.do(ctx, http.MethodGet, "/vector_stores/"+url.PathEscape(vectorStoreID), nil, nil, &vs); err != nil {
		return nil, err
	}
	return &vs, nil
}

// DeleteVectorStore removes a vector store.
func (c *Client) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	return c.do(ctx, http.MethodDelete, "/vector_stores/"+url.PathEscape(vectorStoreID), nil, nil, nil)
}
