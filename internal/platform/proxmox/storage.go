package proxmox

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// StorageItem is one volume in a storage.
type StorageItem struct {
	VolID   string `json:"volid"`
	Content string `json:"content"`
	Format  string `json:"format"`
	Size    int64  `json:"size"`
}

// Basename is the file name part of the volume id.
func (s StorageItem) Basename() string {
	_, rest, _ := strings.Cut(s.VolID, ":")
	return filepath.Base(rest)
}

// UploadOptions describes a file upload to node storage.
type UploadOptions struct {
	Node        string
	Storage     string
	ContentType string // iso or vztmpl
	Path        string
	// Replace deletes an existing file of the same name first.
	Replace bool
}

func storagePath(node, storage string) string {
	return fmt.Sprintf("/nodes/%s/storage/%s", url.PathEscape(node), url.PathEscape(storage))
}

// StorageContent lists the volumes of storage on node.
func (c *Client) StorageContent(ctx context.Context, node, storage string) ([]StorageItem, error) {
	var items []StorageItem
	if err := c.do(ctx, http.MethodGet, storagePath(node, storage)+"/content", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteFile removes contentType/name from storage and waits for the task.
func (c *Client) DeleteFile(ctx context.Context, node, storage, contentType, name string) error {
	volID := fmt.Sprintf("%s:%s/%s", storage, contentType, name)
	path := storagePath(node, storage) + "/content/" + url.PathEscape(volID)
	_, err := c.runTask(ctx, http.MethodDelete, path, nil, nil, MsgDestroyVMTimeout)
	return err
}

// UploadFile uploads opts.Path unless a file of the same name is already
// present. It returns the task exit status, or "OK" when nothing was sent.
func (c *Client) UploadFile(ctx context.Context, opts UploadOptions) (string, error) {
	name := filepath.Base(opts.Path)

	if opts.Replace {
		if err := c.DeleteFile(ctx, opts.Node, opts.Storage, opts.ContentType, name); err != nil {
			return "", fmt.Errorf("failed to remove %s before upload: %w", name, err)
		}
	} else {
		items, err := c.StorageContent(ctx, opts.Node, opts.Storage)
		if err != nil {
			return "", err
		}
		for _, item := range items {
			if item.Basename() == name {
				c.reporter.Detail("%s already present on %s", name, opts.Storage)
				return ExitOK, nil
			}
		}
	}

	// #nosec G304 -- path supplied by the operator
	f, err := os.Open(opts.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", opts.Path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, opts.ContentType, name, f))
	}()

	creds, err := c.session(ctx)
	if err != nil {
		_ = pr.Close()
		return "", err
	}

	var upid string
	body := &formBody{reader: pr, contentType: mw.FormDataContentType()}
	err = c.send(ctx, creds, http.MethodPost, storagePath(opts.Node, opts.Storage)+"/upload", nil, body, &upid)
	_ = pr.Close()
	if err != nil {
		return "", err
	}
	if upid == "" {
		return ExitOK, nil
	}
	return c.AwaitCompletion(ctx, upid, MsgUploadTimeout)
}

func writeUploadForm(mw *multipart.Writer, contentType, name string, r io.Reader) error {
	if err := mw.WriteField("content", contentType); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("filename", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}
