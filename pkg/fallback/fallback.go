// Package fallback supplies static substitute markup for fragments whose
// fetch failed.
package fallback

import (
	"html"
	"sync"
)

// Fallback markup is inner content: it is set directly as the container's
// content, so it never carries the fragment's wrapper element.
const (
	headerMarkup = `<div class="nav-container"><a href="#hero" class="logo">EFF<span>ETA</span></a>` +
		`<nav class="nav-menu"><a href="#hero">Inicio</a><a href="#about">Quiénes Somos</a>` +
		`<a href="#stories">Historias</a><a href="#events">Eventos</a><a href="#join">Únete</a></nav></div>`

	heroMarkup = `<div class="section-container"><h1>EFFETA - Comunidad Juvenil</h1><p>Cargando contenido...</p></div>`
)

// Provider maps module ids to fallback markup. Safe for concurrent use.
type Provider struct {
	mu      sync.RWMutex
	markups map[string]string
}

// New returns a provider with no dedicated fallbacks
func New() *Provider {
	return &Provider{markups: make(map[string]string)}
}

// Default returns a provider with the built-in header and hero fallbacks
func Default() *Provider {
	p := New()
	p.Register("header", headerMarkup)
	p.Register("hero", heroMarkup)
	return p
}

// Register sets the fallback for id. Empty markup removes the dedicated one.
func (p *Provider) Register(id, markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if markup == "" {
		delete(p.markups, id)
		return
	}
	p.markups[id] = markup
}

// Content always returns non-empty markup for id.
func (p *Provider) Content(id string) string {
	p.mu.RLock()
	markup, ok := p.markups[id]
	p.mu.RUnlock()
	if ok {
		return markup
	}
	return Generic(id)
}

// Has reports whether id has a dedicated fallback
func (p *Provider) Has(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.markups[id]
	return ok
}

// Generic is the error message used for ids without a dedicated fallback
func Generic(id string) string {
	return `<div class="error-message">Error cargando ` + html.EscapeString(id) + `</div>`
}
