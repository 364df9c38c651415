// Package initializers holds the post-load steps run once every fragment
// has been mounted.
package initializers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/psantana5/landing/pkg/page"
)

// Form targets
const (
	ContactAction    = "/api/contact"
	NewsletterAction = "/api/newsletter"
)

// WelcomeMessage is shown in the notification toast after load
const WelcomeMessage = "¡Bienvenido a EFFETA! Descubre una comunidad transformadora."

// WireForms points the contact and newsletter forms at their endpoints.
// Pages without the forms are left alone.
func WireForms(contactAction, newsletterAction string) loader.InitializerFunc {
	return func(_ context.Context, doc *page.Document) error {
		return doc.Edit(func(d *goquery.Document) error {
			d.Find("#contact-form").
				SetAttr("action", contactAction).
				SetAttr("method", "post").
				SetAttr("data-form", "contact")
			d.Find(".newsletter-form").
				SetAttr("action", newsletterAction).
				SetAttr("method", "post").
				SetAttr("data-form", "newsletter")
			return nil
		})
	}
}

// CheckNavigation logs in-page links whose target is not on the page
func CheckNavigation(logger *logging.Logger) loader.InitializerFunc {
	return func(_ context.Context, doc *page.Document) error {
		var broken []string
		doc.Query(func(d *goquery.Document) {
			seen := make(map[string]bool)
			d.Find(`a[href^="#"]`).Each(func(_ int, s *goquery.Selection) {
				href, _ := s.Attr("href")
				target := strings.TrimPrefix(href, "#")
				if target == "" || seen[target] {
					return
				}
				seen[target] = true
				if d.Find(`[id="` + target + `"]`).Length() == 0 {
					broken = append(broken, href)
				}
			})
		})
		for _, href := range broken {
			logger.Warn("Navigation target not found", map[string]interface{}{"href": href})
		}
		return nil
	}
}

// Notify fills the notification toast with message, shown after delayMs
func Notify(message string, delayMs int) loader.InitializerFunc {
	return func(_ context.Context, doc *page.Document) error {
		return doc.Edit(func(d *goquery.Document) error {
			toast := d.Find("#notificationToast")
			if toast.Length() == 0 {
				return nil
			}
			toast.SetText(message)
			toast.SetAttr("data-delay-ms", strconv.Itoa(delayMs))
			return nil
		})
	}
}

// MarkLoaded flags the body once assembly is complete
func MarkLoaded() loader.InitializerFunc {
	return func(_ context.Context, doc *page.Document) error {
		return doc.Edit(func(d *goquery.Document) error {
			d.Find("body").SetAttr("data-modules-loaded", "true")
			return nil
		})
	}
}

// Particles embeds cfg as a JSON block for the particle background. The
// block is replaced on every load. Pages without #particles-js are skipped.
func Particles(cfg ParticlesConfig, logger *logging.Logger) loader.InitializerFunc {
	return func(_ context.Context, doc *page.Document) error {
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode particles config: %w", err)
		}
		return doc.Edit(func(d *goquery.Document) error {
			if d.Find("#particles-js").Length() == 0 {
				logger.Warn("Particle container not found")
				return nil
			}
			d.Find("#particles-config").Remove()
			d.Find("body").AppendHtml(`<script id="particles-config" type="application/json">` + string(data) + `</script>`)
			return nil
		})
	}
}

// Register adds the standard initializers to o in page order
func Register(o *loader.Orchestrator, particles ParticlesConfig, logger *logging.Logger) {
	o.OnLoaded("particles", Particles(particles, logger))
	o.OnLoaded("navigation", CheckNavigation(logger))
	o.OnLoaded("forms", WireForms(ContactAction, NewsletterAction))
	o.OnLoaded("welcome", Notify(WelcomeMessage, 1500))
	o.OnLoaded("loaded", MarkLoaded())
}
