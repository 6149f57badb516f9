package asset

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sync"

	"github.com/dixieflatline76/Jitter/util/log"
)

//go:embed web/*.html web/static/*
var assets embed.FS

// Manager manages the loading of web assets.
type Manager struct {
	once  sync.Once
	pages *template.Template
	err   error
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{}
}

func (am *Manager) templates() (*template.Template, error) {
	am.once.Do(func() {
		am.pages, am.err = template.ParseFS(assets, "web/*.html")
		if am.err != nil {
			log.Println("Error parsing page templates:", am.err)
		}
	})
	return am.pages, am.err
}

// GetTemplate returns the embedded page template with the given name, e.g. "index.html".
func (am *Manager) GetTemplate(name string) (*template.Template, error) {
	pages, err := am.templates()
	if err != nil {
		return nil, err
	}
	t := pages.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return t, nil
}

// Render executes the named page template into w.
func (am *Manager) Render(w io.Writer, name string, data any) error {
	t, err := am.GetTemplate(name)
	if err != nil {
		return err
	}
	return t.Execute(w, data)
}

// GetText loads and returns embedded text asset by name.
func (am *Manager) GetText(name string) (string, error) {
	textBytes, err := assets.ReadFile("web/" + name)
	if err != nil {
		log.Println("Error loading text:", err)
		return "", err
	}
	return string(textBytes), nil
}

// Static returns the files served under /static/.
func (am *Manager) Static() fs.FS {
	sub, err := fs.Sub(assets, "web/static")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return sub
}
