package models

import (
	"encoding/json"
	"fmt"
)

// ContentBody is the full content of a library item: checklist sections,
// guide markdown, or flashcards. Bodies are stored as a separate record
// joined to the metadata by item ID.
type ContentBody interface {
	BodyType() ContentType
}

// ChecklistItem is a single line of a checklist section.
type ChecklistItem struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Notes string `json:"notes,omitempty"`
	Order int    `json:"order"`
}

// ChecklistSection groups checklist items under a heading.
type ChecklistSection struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Items []ChecklistItem `json:"items"`
}

// ChecklistBody is the full body of a checklist.
type ChecklistBody struct {
	Sections []ChecklistSection `json:"sections"`
}

// BodyType implements ContentBody.
func (ChecklistBody) BodyType() ContentType { return ContentTypeChecklist }

// GuideBody is the full body of a practice guide.
type GuideBody struct {
	Markdown string `json:"markdown"`
}

// BodyType implements ContentBody.
func (GuideBody) BodyType() ContentType { return ContentTypePracticeGuide }

// Flashcard is a single front/back card.
type Flashcard struct {
	ID    string `json:"id"`
	Front string `json:"front"`
	Back  string `json:"back"`
}

// FlashcardDeckBody is the full body of a flashcard deck.
type FlashcardDeckBody struct {
	Cards []Flashcard `json:"cards"`
}

// BodyType implements ContentBody.
func (FlashcardDeckBody) BodyType() ContentType { return ContentTypeFlashcardDeck }

// DecodeBody decodes raw content data into the body type matching the
// discriminator. Used when restoring stored bodies and when forking shared
// content fetched from the remote service.
func DecodeBody(contentType ContentType, data []byte) (ContentBody, error) {
	switch contentType {
	case ContentTypeChecklist:
		var body ChecklistBody
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("failed to decode checklist body: %w", err)
		}
		return &body, nil
	case ContentTypePracticeGuide:
		var body GuideBody
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("failed to decode guide body: %w", err)
		}
		return &body, nil
	case ContentTypeFlashcardDeck:
		var body FlashcardDeckBody
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("failed to decode flashcard deck body: %w", err)
		}
		return &body, nil
	default:
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}
}

// EncodeBody serializes a content body for storage or for a publish payload.
func EncodeBody(body ContentBody) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s body: %w", body.BodyType(), err)
	}
	return data, nil
}
