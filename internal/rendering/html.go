package rendering

import (
	"embed"
	"html/template"
	"strings"
	"sync"

	"github.com/jonathan/keyword-miner/internal/types"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

// ReportData is everything shown in a deep dive report.
type ReportData struct {
	Lang         string
	Seed         types.KeywordRecord
	Report       *types.StrategyReport
	CoreKeywords []types.KeywordRecord
	Competition  []types.CompetitionNote
	Probability  types.Probability
	SearchIntent string
	IntentMatch  string
	Analysis     string
}

var (
	reportTmpl    *template.Template
	reportTmplErr error
	parseOnce     sync.Once
)

func parseTemplate() (*template.Template, error) {
	parseOnce.Do(func() {
		tmpl, err := template.New("report.html.tmpl").Funcs(template.FuncMap{
			"lower": func(p types.Probability) string { return strings.ToLower(string(p)) },
			// index2 is index that yields "" instead of failing past the end.
			"index2": func(list []string, i int) string {
				if i < 0 || i >= len(list) {
					return ""
				}
				return list[i]
			},
		}).ParseFS(templateFS, "templates/report.html.tmpl")
		if err != nil {
			reportTmplErr = &ReportError{Phase: "parse", Cause: err}
			return
		}
		reportTmpl = tmpl
	})
	return reportTmpl, reportTmplErr
}

// RenderHTML renders a self-contained HTML page for a deep dive. All text is
// escaped by html/template.
func RenderHTML(data ReportData) (string, error) {
	if data.Report == nil {
		return "", ErrNoReport
	}
	tmpl, err := parseTemplate()
	if err != nil {
		return "", err
	}
	if data.Lang == "" {
		data.Lang = "en"
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", &ReportError{Phase: "execute", Cause: err}
	}
	return sb.String(), nil
}
