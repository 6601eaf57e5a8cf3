package assistant

import (
	"sync"
	"time"

	"github.com/kalambet/aura/internal/composer"
	"github.com/kalambet/aura/internal/extract"
)

// File is an uploaded document the assistant may reference.
type File struct {
	Name       string    `json:"name"`
	MIMEType   string    `json:"mime_type,omitempty"`
	Size       int       `json:"size"`
	Text       string    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Files is the uploaded-file registry of one session. Adding a file with an
// existing name replaces it.
type Files struct {
	mu    sync.RWMutex
	files []File
	now   func() time.Time
}

// NewFiles creates an empty registry.
func NewFiles() *Files {
	return &Files{now: time.Now}
}

// Add registers a file's extracted text.
func (f *Files) Add(name, text string, size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(name)
	f.files = append(f.files, File{
		Name:       name,
		MIMEType:   extract.MIMEType(name, nil),
		Size:       size,
		Text:       text,
		UploadedAt: f.now(),
	})
}

// Remove unregisters a file and reports whether it existed.
func (f *Files) Remove(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeLocked(name)
}

func (f *Files) removeLocked(name string) bool {
	for i, file := range f.files {
		if file.Name == name {
			f.files = append(f.files[:i], f.files[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the files in upload order.
func (f *Files) List() []File {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]File, len(f.files))
	copy(out, f.files)
	return out
}

// documents returns the files newest first for prompt composition.
func (f *Files) documents() []composer.Document {
	f.mu.RLock()
	defer f.mu.RUnlock()
	docs := make([]composer.Document, 0, len(f.files))
	for i := len(f.files) - 1; i >= 0; i-- {
		docs = append(docs, composer.Document{Name: f.files[i].Name, Text: f.files[i].Text})
	}
	return docs
}
