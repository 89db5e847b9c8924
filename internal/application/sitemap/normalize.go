package sitemap

import (
	"fmt"

	"github.com/sitecraft/sitegen-backend/internal/application/dto"
)

// Normalize pads a sitemap up to the builder service's minimum page and
// section counts. Existing pages and sections are never truncated or
// reordered; synthetic titles derive from position only, so identical
// input always yields identical output. The input slice is left untouched.
func Normalize(pages []dto.PageMeta, minPages, minSections int) []dto.PageMeta {
	out := make([]dto.PageMeta, 0, max(len(pages), minPages))
	for _, page := range pages {
		sections := make([]dto.SectionMeta, len(page.Sections), max(len(page.Sections), minSections))
		copy(sections, page.Sections)
		for i := len(sections); i < minSections; i++ {
			sections = append(sections, syntheticSection(i+1))
		}
		out = append(out, dto.PageMeta{Title: page.Title, Sections: sections})
	}

	for i := len(out); i < minPages; i++ {
		page := dto.PageMeta{
			Title:    fmt.Sprintf("Page %d", i+1),
			Sections: make([]dto.SectionMeta, 0, minSections),
		}
		for j := 0; j < minSections; j++ {
			page.Sections = append(page.Sections, syntheticSection(j+1))
		}
		out = append(out, page)
	}

	return out
}

func syntheticSection(i int) dto.SectionMeta {
	return dto.SectionMeta{Title: fmt.Sprintf("Custom Section %d", i)}
}
