// Package email defines the templates versionwatch sends and renders them
// to HTML and plain text.
package email

import (
	"fmt"
	"strings"

	"github.com/fiffu/versionwatch/config"
	"github.com/juju/errors"
	"github.com/matcornic/hermes/v2"
)

type Format interface {
	// Key names the template, for logs and delivery records.
	Key() string
	Subject() string
	Body() hermes.Email
}

// pixeled is implemented by formats that carry an open-tracking image.
type pixeled interface {
	PixelURL() string
}

type Renderer struct {
	h hermes.Hermes
}

func NewRenderer(cfg *config.Config) *Renderer {
	return &Renderer{
		h: hermes.Hermes{
			Theme:         new(hermes.Default),
			TextDirection: hermes.TDLeftToRight,
			Product: hermes.Product{
				Name:        "Versionwatch",
				Link:        cfg.ServerDNS,
				Copyright:   "Versionwatch tracks managed cloud service versions so you don't have to.",
				TroubleText: "If the '{ACTION}' button does not work, copy and paste the URL below into your web browser.",
			},
		},
	}
}

func (r *Renderer) Render(f Format) (html, text string, err error) {
	body := f.Body()

	html, err = r.h.GenerateHTML(body)
	if err != nil {
		return "", "", errors.Annotatef(err, "rendering %s html", f.Key())
	}
	text, err = r.h.GeneratePlainText(body)
	if err != nil {
		return "", "", errors.Annotatef(err, "rendering %s text", f.Key())
	}

	if p, ok := f.(pixeled); ok && p.PixelURL() != "" {
		html = injectPixel(html, p.PixelURL())
	}
	return html, text, nil
}

func injectPixel(html, url string) string {
	img := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none">`, url)
	if i := strings.LastIndex(html, "</body>"); i >= 0 {
		return html[:i] + img + html[i:]
	}
	return html + img
}
