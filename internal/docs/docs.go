// Package docs is the document store the handlers read employee files and
// company policies from.
//
// Layout inside the bucket:
//
//	{tenant}/employees/{sender}/   personal files (PDFs and their JSON extracts)
//	{tenant}/sops/all/             shared policies and SOPs
package docs

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("docs: object not found")

// Object is one listed key.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the object store capability.
type Store interface {
	// List returns every object under prefix, in key order.
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// PresignGet returns a time-limited download link that serves the
	// object as an attachment named filename.
	PresignGet(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
}

// PersonalPrefix is the folder holding one employee's files.
func PersonalPrefix(tenantID, senderID string) string {
	return tenantID + "/employees/" + senderID + "/"
}

// SharedPrefix is the folder holding a tenant's policies.
func SharedPrefix(tenantID string) string {
	return tenantID + "/sops/all/"
}

// PersonalKey is the key of one of an employee's files.
func PersonalKey(tenantID, senderID, filename string) string {
	return PersonalPrefix(tenantID, senderID) + filename
}

// SOPKey is the PDF of a referenced SOP document id such as "SOP-HR-001".
func SOPKey(tenantID, docID string) string {
	return SharedPrefix(tenantID) + docID + ".pdf"
}

// Filename returns the last path element of key.
func Filename(key string) string { return path.Base(key) }

// IsPDF reports whether key names a PDF.
func IsPDF(key string) bool { return strings.HasSuffix(strings.ToLower(key), ".pdf") }

// PDFTwin returns the PDF that a JSON extract was produced from.
func PDFTwin(jsonKey string) string {
	return strings.TrimSuffix(jsonKey, ".json") + ".pdf"
}

// Content extracts the text of a JSON document: its "content" field when
// present, otherwise the document itself.
func Content(raw []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return string(raw)
	}
	if c, ok := doc["content"].(string); ok {
		return c
	}
	return string(raw)
}

// Keys returns the keys of objs.
func Keys(objs []Object) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Key
	}
	return out
}
