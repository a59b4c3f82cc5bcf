package notion

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoPageID indicates the webhook body carried no data.id.
var ErrNoPageID = errors.New("page_id not found in event body at data.id")

// Payload is the subset of a Notion automation webhook body we consume.
type Payload struct {
	// ID is the delivery/event id some automations attach at the top level.
	ID   string `json:"id"`
	Data *Page  `json:"data"`
}

// Page carries the triggering page and its properties.
type Page struct {
	ID         string              `json:"id"`
	Properties map[string]Property `json:"properties"`
}

// Property is a union of the property shapes we read and write.
type Property struct {
	Title    []RichTextSpan `json:"title,omitempty"`
	RichText []RichTextSpan `json:"rich_text,omitempty"`
	URL      *string        `json:"url,omitempty"`
}

// RichTextSpan is a single span of a title or rich_text property.
type RichTextSpan struct {
	Type      string    `json:"type,omitempty"`
	PlainText string    `json:"plain_text,omitempty"`
	Text      *TextBody `json:"text,omitempty"`
}

// TextBody is the writable content of a text span.
type TextBody struct {
	Content string `json:"content"`
}

// ParsePayload decodes a webhook body. Bodies that are not JSON objects are
// rejected; a missing data.id is reported via ErrNoPageID.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if p.Data == nil || p.Data.ID == "" {
		return nil, ErrNoPageID
	}
	return &p, nil
}

// PageID returns the id of the triggering page.
func (p *Payload) PageID() string {
	if p.Data == nil {
		return ""
	}
	return p.Data.ID
}

// DedupKey is the identity used for replay suppression: the delivery id when
// present, otherwise the page id.
func (p *Payload) DedupKey() string {
	if p.ID != "" {
		return p.ID
	}
	return p.PageID()
}

// Extract pulls the company name (title property) and website (url property)
// out of the page properties. Either may be empty when absent.
func (p *Payload) Extract(titleProp, websiteProp string) (company, website string) {
	if p.Data == nil {
		return "", ""
	}
	props := p.Data.Properties

	if prop, ok := props[titleProp]; ok && len(prop.Title) > 0 {
		company = prop.Title[0].PlainText
	}
	if prop, ok := props[websiteProp]; ok && prop.URL != nil {
		website = *prop.URL
	}
	return company, website
}
