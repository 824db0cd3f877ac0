package valueobjects

import (
	"strings"

	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
	"github.com/dipan99/mindmapper/pkg/utils"
)

// SourceItem is one reference link of a Sources node
type SourceItem struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// NewSourceItem creates a source item; the URL is required, the title is not
func NewSourceItem(url, title string) (SourceItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return SourceItem{}, pkgerrors.NewEmptyInputError("source url")
	}
	if err := utils.ValidateURL(url); err != nil {
		return SourceItem{}, pkgerrors.NewValidationError(err.Error())
	}
	return SourceItem{URL: url, Title: strings.TrimSpace(title)}, nil
}

// HasTitle reports whether the item carries a display title
func (s SourceItem) HasTitle() bool {
	return s.Title != ""
}
