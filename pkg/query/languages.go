package query

import (
	"cmp"
	"context"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// LanguageCount is a row of the original language report.
type LanguageCount struct {
	Language     string
	Count        int
	ExampleTitle string
}

// producedIn reports whether a movie lists the given production country, by
// ISO code or by name, or a production company from that country.
func producedIn(m *models.MovieDocument, code, name string) bool {
	for _, c := range m.ProductionCountries {
		if (code != "" && c.ISO3166_1 == code) || (name != "" && c.Name == name) {
			return true
		}
	}
	for _, c := range m.ProductionCompanies {
		if code != "" && c.OriginCountry == code {
			return true
		}
	}
	return false
}

// Languages counts US-produced movies by original language, excluding the
// configured language. Movies without an original language share one bucket
// whose Language is empty.
func (e *Engine) Languages(ctx context.Context) ([]LanguageCount, error) {
	cfg := e.cfg.Languages
	counts := make(map[string]*LanguageCount)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		lang := m.OriginalLanguage
		if lang == cfg.ExcludedLanguage || !producedIn(m, cfg.CountryCode, cfg.CountryName) {
			return nil
		}
		c, ok := counts[lang]
		if !ok {
			c = &LanguageCount{Language: lang, ExampleTitle: m.Title}
			counts[lang] = c
		}
		c.Count++
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]LanguageCount, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, *c)
	}
	SortBy(rows, func(a, b LanguageCount) int {
		return cmp.Or(Desc(a.Count, b.Count), cmp.Compare(a.Language, b.Language))
	})
	return Take(rows, cfg.Limit), nil
}
