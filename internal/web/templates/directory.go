// Package templates renders the directory pages as templ components.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JonMunkholm/worldview/internal/directory"
)

// DirectoryID is the element id of the swappable directory block.
const DirectoryID = "directory"

// Alert is a user-facing error shown above the directory.
type Alert struct {
	Message string
	Action  string
	Code    string
}

// PageData is everything the directory page renders.
type PageData struct {
	View        directory.View
	Regions     []directory.Region
	RecordCount int
	Alert       *Alert
}

var numbers = message.NewPrinter(language.English)

// FormatPopulation renders n with thousands separators.
func FormatPopulation(n int64) string {
	return numbers.Sprintf("%d", n)
}

// Page renders the full HTML document.
func Page(p PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>Where in the world?</title>`)
		hw.raw(`<link rel="stylesheet" href="/static/style.css">`)
		hw.raw(`<script src="/static/directory.js" defer></script>`)
		hw.raw(`</head><body><header class="topbar"><p class="title">Where in the world?</p></header><main>`)
		if hw.err != nil {
			return hw.err
		}
		if err := Directory(p).Render(ctx, w); err != nil {
			return err
		}
		hw.raw(`</main></body></html>`)
		return hw.err
	})
}

// Directory renders the alert, controls and card grid. HTMX requests get
// only this block.
//
// Controls carry hx-post and hx-target so that, with scripting, each
// change posts in the background and the response replaces this block.
// Without scripting the same forms fall back to full page loads.
func Directory(p PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		v := p.View
		hw := &htmlWriter{w: w}
		hw.raw(`<section id="` + DirectoryID + `">`)

		if p.Alert != nil {
			if err := ErrorAlert(p.Alert.Message, p.Alert.Action, p.Alert.Code).Render(ctx, w); err != nil {
				return err
			}
		}

		// Search and region share one GET form so the page works without JS.
		hw.raw(`<form class="filters" method="get" action="/">`)
		hw.raw(`<label class="search"><span>Search</span>`)
		hw.raw(`<input type="search" id="search" name="search" placeholder="Search for a country..."`)
		hw.swap("/search", "keyup changed delay:300ms, search")
		hw.raw(` value="`)
		hw.text(v.Filter.SearchText)
		hw.raw(`"></label>`)
		hw.raw(`<label class="region"><span>Filter by Region</span><select id="region" name="region"`)
		hw.swap("/region", "change")
		hw.raw(`>`)
		hw.option("", "All regions", v.Filter.Region.IsNone())
		for _, r := range p.Regions {
			hw.option(r.String(), r.String(), v.Filter.Region == r)
		}
		hw.raw(`</select></label><button type="submit">Apply</button></form>`)

		hw.raw(`<nav class="pager" aria-label="pagination">`)
		hw.pageButton("/page/prev", "&lt;", "Previous page", !v.HasPrev())
		hw.raw(`<span class="page">`)
		hw.text(strconv.Itoa(v.Page))
		hw.raw(`</span>`)
		hw.pageButton("/page/next", "&gt;", "Next page", !v.HasNext())
		hw.raw(`<span class="summary">`)
		hw.text(fmt.Sprintf("page %d of %d, %d of %d countries", v.Page, v.TotalPages, v.MatchCount, p.RecordCount))
		hw.raw(`</span></nav>`)

		hw.raw(`<div class="grid">`)
		for _, rec := range v.Visible {
			hw.card(rec)
		}
		hw.raw(`</div></section>`)
		return hw.err
	})
}

// ErrorAlert renders a dismissible-free error banner.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<div class="alert" role="alert"><p class="alert-message">`)
		hw.text(message)
		hw.raw(`</p>`)
		if action != "" {
			hw.raw(`<p class="alert-action">`)
			hw.text(action)
			hw.raw(`</p>`)
		}
		if code != "" {
			hw.raw(`<p class="alert-code">Code: `)
			hw.text(code)
			hw.raw(`</p>`)
		}
		hw.raw(`</div>`)
		return hw.err
	})
}

// htmlWriter keeps the first write error so components can write freely
// and check once.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) option(value, label string, selected bool) {
	h.raw(`<option value="`)
	h.text(value)
	h.raw(`"`)
	if selected {
		h.raw(` selected`)
	}
	h.raw(`>`)
	h.text(label)
	h.raw(`</option>`)
}

func (h *htmlWriter) pageButton(action, label, title string, disabled bool) {
	h.raw(`<form method="post" action="` + action + `"`)
	h.swap(action, "")
	h.raw(`><button type="submit" title="` + title + `"`)
	if disabled {
		h.raw(` disabled`)
	}
	h.raw(`>` + label + `</button></form>`)
}

// swap writes the attributes that post to path and replace the directory
// block with the response. An empty trigger keeps the element's default
// event.
func (h *htmlWriter) swap(path, trigger string) {
	h.raw(` hx-post="` + path + `" hx-target="#` + DirectoryID + `" hx-swap="outerHTML"`)
	if trigger != "" {
		h.raw(` hx-trigger="`)
		h.text(trigger)
		h.raw(`"`)
	}
}

func (h *htmlWriter) card(rec directory.Record) {
	h.raw(`<article class="card" data-id="`)
	h.text(rec.ID)
	h.raw(`">`)
	if src := safeImageURL(rec.FlagURL); src != "" {
		h.raw(`<img class="flag" loading="lazy" src="`)
		h.text(src)
		h.raw(`" alt="`)
		h.text(rec.FlagAlt)
		h.raw(`">`)
	}
	h.raw(`<h2>`)
	h.text(rec.DisplayName)
	h.raw(`</h2><dl>`)
	h.raw(`<dt>Population:</dt><dd>`)
	h.text(FormatPopulation(rec.Population))
	h.raw(`</dd><dt>Region:</dt><dd>`)
	h.text(rec.Region.String())
	h.raw(`</dd><dt>Capital:</dt><dd>`)
	h.text(rec.Capital)
	h.raw(`</dd></dl></article>`)
}

// safeImageURL drops anything that is not an absolute http(s) URL.
func safeImageURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}
