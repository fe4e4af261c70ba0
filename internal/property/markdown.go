package property

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/johndauphine/propfolio/internal/enrichment"
)

// ReviewMarkdown renders the review lines as a markdown table under a
// heading naming the property.
func (d *Draft) ReviewMarkdown(propertyID string, md *enrichment.MarketData) string {
	var b strings.Builder
	title := d.Address.Street
	if title == "" {
		title = "New property"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if propertyID != "" {
		fmt.Fprintf(&b, "Property `%s`\n\n", propertyID)
	}
	b.WriteString("| Item | Value |\n|---|---:|\n")
	for _, row := range d.Review(md) {
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(row[0]), escapeCell(row[1]))
	}
	return b.String()
}

// RenderReview renders ReviewMarkdown for a terminal of the given width.
func (d *Draft) RenderReview(propertyID string, md *enrichment.MarketData, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(d.ReviewMarkdown(propertyID, md))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
