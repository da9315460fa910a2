package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

// missingValue is printed where a statistic is not available.
const missingValue = "—"

// Photo is an encoded student picture ready to embed.
type Photo struct {
	Data []byte
	// ImageType is the gofpdf image type, "JPG" or "PNG".
	ImageType string
}

// Renderer turns an assembled report card document into PDF bytes.
type Renderer interface {
	Render(doc models.ReportCardData, tpl models.ReportCardTemplate, photo *Photo) ([]byte, error)
}

// SelectRenderer returns the HTML template backend when the template carries
// custom HTML and the native layout otherwise.
func SelectRenderer(tpl models.ReportCardTemplate) Renderer {
	if tpl.HasCustomHTML() {
		return NewHTMLTemplatePDF()
	}
	return NewReportCardPDF()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptionalScore(v *float64) string {
	if v == nil {
		return missingValue
	}
	return formatScore(*v)
}

func formatCoefficient(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalText(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func periodTitle(doc models.ReportCardData) string {
	return fmt.Sprintf("%s %s", doc.Semester, doc.SchoolYear)
}

// parseHexColor reads "#RRGGBB" or "RRGGBB", returning fallback on malformed input.
func parseHexColor(raw string, fallback [3]int) [3]int {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(raw) != 6 {
		return fallback
	}
	var rgb [3]int
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(raw[i*2:i*2+2], 16, 8)
		if err != nil {
			return fallback
		}
		rgb[i] = int(v)
	}
	return rgb
}
