package catalog

import (
	"strings"

	"github.com/teranos/catalogix/internal/util"
)

// SchemaVersion is the models table layout the statements target.
const SchemaVersion = "3.3.0"

// Columns of the models table in statement order.
var Columns = []string{
	"id", "slug", "name", "author", "source", "description", "tags", "pipeline_tag",
	"likes", "downloads", "cover_image_url", "source_trail", "commercial_slots",
	"notebooklm_summary", "velocity_score", "last_commercial_at", "license_spdx",
	"meta_json", "last_updated",
}

var insertPrefix = "INSERT OR REPLACE INTO models (" + strings.Join(Columns, ", ") + ") VALUES ("

// UpsertStatement renders the single-line metadata statement. The cover image
// is always NULL here; it is set by the update stream.
func UpsertStatement(id Identity, f Fields) string {
	velocity := "NULL"
	if f.VelocityScore != nil {
		velocity = FormatFloat(*f.VelocityScore)
	}

	values := []string{
		Quote(id.InternalID),
		Quote(id.Slug),
		Quote(id.Name),
		Quote(id.Author),
		Quote(id.Source),
		Quote(f.Description),
		Quote(f.Tags),
		Quote(f.PipelineTag),
		FormatInt(f.Likes),
		FormatInt(f.Downloads),
		"NULL",
		QuotedOrNull(f.SourceTrail),
		QuotedOrNull(f.CommercialSlots),
		QuotedOrNull(f.NotebookLM),
		velocity,
		QuotedOrNull(f.LastCommercialAt),
		QuotedOrNull(f.License),
		QuotedOrNull(f.MetaJSON),
		"CURRENT_TIMESTAMP",
	}
	return insertPrefix + strings.Join(values, ", ") + ");\n"
}

// UpdateStatement points the record's cover image at url.
func UpdateStatement(id Identity, url string) string {
	return "UPDATE models SET cover_image_url = " + Quote(url) + " WHERE id = " + Quote(id.InternalID) + ";\n"
}

// Projection is the lightweight JSON form of a record used for chunked
// export. It never carries the document body.
type Projection struct {
	ID               string   `json:"id"`
	Slug             string   `json:"slug"`
	Name             string   `json:"name"`
	Author           string   `json:"author"`
	Source           string   `json:"source"`
	Description      string   `json:"description"`
	Tags             string   `json:"tags"`
	PipelineTag      string   `json:"pipeline_tag"`
	Likes            int64    `json:"likes"`
	Downloads        int64    `json:"downloads"`
	CoverImageURL    *string  `json:"cover_image_url"`
	RawImageURL      *string  `json:"raw_image_url"`
	BodyContentURL   *string  `json:"body_content_url"`
	SourceTrail      *string  `json:"source_trail"`
	CommercialSlots  *string  `json:"commercial_slots"`
	NotebookLM       *string  `json:"notebooklm_summary"`
	VelocityScore    *float64 `json:"velocity_score"`
	LastCommercialAt *string  `json:"last_commercial_at"`
	License          *string  `json:"license_spdx"`
	EntityType       string   `json:"entity_type"`
	SearchText       string   `json:"search_text"`
	MetaJSON         *string  `json:"meta_json"`
}

// NewProjection builds the projection; coverURL and bodyURL may be empty.
func NewProjection(id Identity, f Fields, coverURL, bodyURL string) Projection {
	if bodyURL == "" {
		bodyURL = f.BodyContentURL
	}
	return Projection{
		ID:               id.InternalID,
		Slug:             id.Slug,
		Name:             id.Name,
		Author:           id.Author,
		Source:           id.Source,
		Description:      f.Description,
		Tags:             f.Tags,
		PipelineTag:      f.PipelineTag,
		Likes:            f.Likes,
		Downloads:        f.Downloads,
		CoverImageURL:    util.NonZero(coverURL),
		RawImageURL:      util.NonZero(f.RawImageURL),
		BodyContentURL:   util.NonZero(bodyURL),
		SourceTrail:      util.NonZero(f.SourceTrail),
		CommercialSlots:  util.NonZero(f.CommercialSlots),
		NotebookLM:       util.NonZero(f.NotebookLM),
		VelocityScore:    f.VelocityScore,
		LastCommercialAt: util.NonZero(f.LastCommercialAt),
		License:          util.NonZero(f.License),
		EntityType:       f.EntityType,
		SearchText:       f.SearchText(),
		MetaJSON:         util.NonZero(f.MetaJSON),
	}
}
