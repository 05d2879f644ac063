package catalog

import (
	"context"
	"net/url"
	"strings"

	"github.com/teranos/catalogix/blob"
	"github.com/teranos/catalogix/imaging"
)

// Fetcher downloads one URL. *httpclient.SaferClient implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, error)
}

// TransformFunc turns fetched bytes into the canonical encoded image.
type TransformFunc func(data []byte) ([]byte, error)

// ImageSource says where a record's image URL came from.
type ImageSource string

const (
	SourceNone     ImageSource = ""
	SourceExplicit ImageSource = "raw_image_url"
	SourceGitHub   ImageSource = "github avatar"
	SourceAvatar   ImageSource = "generated avatar"
)

// PickImageURL applies the source priority: an explicit http(s) image URL,
// then the GitHub avatar for github records, then a generated avatar when
// avatarFallback is on.
func PickImageURL(id Identity, f Fields, avatarFallback bool) (string, ImageSource) {
	if isHTTPURL(f.RawImageURL) {
		return strings.TrimSpace(f.RawImageURL), SourceExplicit
	}
	if id.Source == "github" && id.Author != "" && id.Author != UnknownAuthor {
		return "https://github.com/" + url.PathEscape(id.Author) + ".png", SourceGitHub
	}
	if avatarFallback {
		return "https://ui-avatars.com/api/?name=" + url.QueryEscape(id.Name) + "&size=512&background=random&color=fff", SourceAvatar
	}
	return "", SourceNone
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// imageStep runs fetch, transform and store for one record. It returns the
// public URL on success; every outcome is appended to trail.
func (p *Processor) imageStep(ctx context.Context, id Identity, f Fields, trail *Trail) string {
	if p.store == nil {
		trail.Add("object storage not configured, skipping image")
		return ""
	}

	src, kind := PickImageURL(id, f, p.opts.AvatarFallback)
	if src == "" {
		if f.RawImageURL != "" {
			trail.Addf("ignoring non-http image URL %q", f.RawImageURL)
		}
		trail.Add("no image URL, skipping")
		return ""
	}

	trail.Addf("Downloading image for %s from %s (%s)", id.InternalID, src, kind)
	data, err := p.fetcher.Fetch(ctx, src, p.opts.MaxBytes)
	if err != nil {
		trail.Addf("Download failed: %v", err)
		return ""
	}
	trail.Addf("Downloaded %d bytes", len(data))

	encoded, err := p.transform(data)
	if err != nil {
		trail.Addf("Transform failed: %v", err)
		return ""
	}
	trail.Addf("Transformed to %s (%d bytes)", p.opts.Format, len(encoded))

	key := blob.ImageKey(id.InternalID, p.opts.Format.Ext())
	publicURL, err := p.store.Put(ctx, key, encoded, p.opts.Format.ContentType())
	if err != nil {
		trail.Addf("Storage write failed: %v", err)
		return ""
	}
	trail.Addf("Stored %s at %s", key, publicURL)
	return publicURL
}

// bodyStep moves a document body out of the metadata path into the store.
func (p *Processor) bodyStep(ctx context.Context, id Identity, f Fields, trail *Trail) string {
	if f.Body == "" || !p.opts.StoreBodies {
		return ""
	}
	if p.store == nil {
		trail.Add("object storage not configured, skipping body")
		return ""
	}

	key := blob.BodyKey(id.InternalID)
	publicURL, err := p.store.Put(ctx, key, []byte(f.Body), "text/markdown; charset=utf-8")
	if err != nil {
		trail.Addf("Body storage failed: %v", err)
		return ""
	}
	trail.Addf("Stored body (%d bytes) at %s", len(f.Body), publicURL)
	return publicURL
}

func defaultTransform(maxWidth int, format imaging.Format, quality int) TransformFunc {
	return func(data []byte) ([]byte, error) {
		return imaging.ResizeAndEncode(data, maxWidth, format, imaging.Options{Quality: quality})
	}
}
