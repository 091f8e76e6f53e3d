// Package documents stores land documents and generated certificates by
// content hash.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/sentinel"
)

// Handle identifies a stored document. Hash is the SHA-256 hex digest of the
// content.
type Handle struct {
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// Object is a fetched document.
type Object struct {
	Name        string
	ContentType string
	Content     []byte
}

// Hash returns the SHA-256 hex digest used as the storage key.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func validate(name string, content []byte) error {
	if strings.TrimSpace(name) == "" {
		return dErrors.New(dErrors.CodeValidation, "document name is required")
	}
	if len(content) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document is empty")
	}
	return nil
}

// Memory keeps documents in process. Storing identical content twice yields
// the same handle.
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (m *Memory) Store(_ context.Context, name, contentType string, content []byte) (Handle, error) {
	if err := validate(name, content); err != nil {
		return Handle{}, err
	}
	hash := Hash(content)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[hash]; !ok {
		m.objects[hash] = Object{
			Name:        name,
			ContentType: contentType,
			Content:     append([]byte(nil), content...),
		}
	}
	return Handle{URL: m.baseURL + "/documents/" + hash, Hash: hash}, nil
}

func (m *Memory) Fetch(_ context.Context, hash string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	obj.Content = append([]byte(nil), obj.Content...)
	return &obj, nil
}
