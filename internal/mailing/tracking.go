package mailing

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// Store persists the tracking rows created while rewriting a body.
type Store interface {
	CreateOpen(ctx context.Context, open *domain.EmailOpen) error
	CreateLink(ctx context.Context, link *domain.EmailLink) error
}

var (
	closingBody = regexp.MustCompile(`(?i)</body\s*>`)
	htmlTag     = regexp.MustCompile(`(?i)<html[\s>]`)
)

// Rewriter injects tracking into HTML bodies.
type Rewriter struct {
	store   Store
	baseURL string
	newID   func() string
}

// NewRewriter creates a Rewriter. baseURL is the public root of the tracking
// routes, for example https://app.example.com/email-tracker.
func NewRewriter(store Store, baseURL string) *Rewriter {
	return &Rewriter{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		newID:   func() string { return uuid.New().String() },
	}
}

// BeaconURL returns the pixel URL for a beacon identifier.
func (r *Rewriter) BeaconURL(id string) string {
	return r.baseURL + "/beacon/" + id
}

// LinkURL returns the redirect URL for a link identifier.
func (r *Rewriter) LinkURL(id string) string {
	return r.baseURL + "/link/" + id
}

// Rewrite applies link and open tracking to html as selected by opts.
func (r *Rewriter) Rewrite(ctx context.Context, sent *domain.SentEmail, html string, opts domain.TrackingOptions) (string, error) {
	if html == "" {
		return html, nil
	}
	var err error
	if opts.Links {
		if html, err = r.RewriteLinks(ctx, sent, html); err != nil {
			return "", err
		}
	}
	if opts.Opens {
		if html, err = r.AddBeacon(ctx, sent, html); err != nil {
			return "", err
		}
	}
	return html, nil
}

// AddBeacon creates the EmailOpen row and inserts a 1x1 image before
// </body>, or at the end when the body has none.
func (r *Rewriter) AddBeacon(ctx context.Context, sent *domain.SentEmail, html string) (string, error) {
	open := &domain.EmailOpen{SentEmailID: sent.ID, BeaconIdentifier: r.newID()}
	if err := r.store.CreateOpen(ctx, open); err != nil {
		return "", fmt.Errorf("create email open: %w", err)
	}

	img := fmt.Sprintf(`<img src="%s" alt="" style="width:1px;height:1px;"/>`, r.BeaconURL(open.BeaconIdentifier))
	locs := closingBody.FindAllStringIndex(html, -1)
	if len(locs) == 0 {
		return html + img, nil
	}
	at := locs[len(locs)-1][0]
	return html[:at] + img + html[at:], nil
}

// RewriteLinks replaces every anchor whose href is an absolute http or https
// URL with a tracked link. Other schemes and relative hrefs are left alone.
func (r *Rewriter) RewriteLinks(ctx context.Context, sent *domain.SentEmail, html string) (string, error) {
	doc, err := parseBody(html)
	if err != nil {
		return "", fmt.Errorf("parse html body: %w", err)
	}

	var (
		rewritten int
		firstErr  error
	)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !Trackable(href) {
			return true
		}
		link := &domain.EmailLink{
			SentEmailID:    sent.ID,
			LinkIdentifier: r.newID(),
			OriginalURL:    strings.TrimSpace(href),
		}
		if err := r.store.CreateLink(ctx, link); err != nil {
			firstErr = fmt.Errorf("create email link: %w", err)
			return false
		}
		a.SetAttr("href", r.LinkURL(link.LinkIdentifier))
		rewritten++
		return true
	})
	if firstErr != nil {
		return "", firstErr
	}
	if rewritten == 0 {
		return html, nil
	}
	logger.Debug("links rewritten", "sent_email_id", sent.ID, "count", rewritten)
	return doc.Html()
}

// Trackable reports whether raw is an absolute http or https URL.
func Trackable(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
