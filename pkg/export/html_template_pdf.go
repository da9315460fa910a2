package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

// Placeholder tokens understood in a template's custom HTML.
const (
	PlaceholderSchoolName     = "{{school_name}}"
	PlaceholderHeaderText     = "{{header_text}}"
	PlaceholderFooterText     = "{{footer_text}}"
	PlaceholderStudentName    = "{{student_name}}"
	PlaceholderBirthDate      = "{{birth_date}}"
	PlaceholderClassName      = "{{class_name}}"
	PlaceholderProgramName    = "{{program_name}}"
	PlaceholderSchoolYear     = "{{school_year}}"
	PlaceholderSemester       = "{{semester}}"
	PlaceholderSubjects       = "{{subjects}}"
	PlaceholderStudentAverage = "{{student_average}}"
	PlaceholderClassAverage   = "{{class_average}}"
	PlaceholderAppreciation   = "{{general_appreciation}}"
)

// markupEscaper keeps document values from opening tags in the HTML writer.
var markupEscaper = strings.NewReplacer("<", "‹", ">", "›")

// HTMLTemplatePDF substitutes document fields into a template's custom HTML
// and writes the result with gofpdf's basic HTML writer (b, i, u, a, br, center).
type HTMLTemplatePDF struct{}

// NewHTMLTemplatePDF constructs the HTML template renderer.
func NewHTMLTemplatePDF() *HTMLTemplatePDF {
	return &HTMLTemplatePDF{}
}

// Render fills the template placeholders and writes the HTML body to a PDF page.
func (r *HTMLTemplatePDF) Render(doc models.ReportCardData, tpl models.ReportCardTemplate, photo *Photo) ([]byte, error) {
	if !tpl.HasCustomHTML() {
		return nil, fmt.Errorf("template %q has no custom html", tpl.Name)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	if tpl.ShowPhoto && photo != nil && len(photo.Data) > 0 {
		opts := gofpdf.ImageOptions{ImageType: photo.ImageType}
		pdf.RegisterImageOptionsReader(photoName, opts, bytes.NewReader(photo.Data))
		if pdf.Ok() {
			pdf.ImageOptions(photoName, 210-15-photoWidth, 15, photoWidth, photoHeight, false, opts, 0, "")
		} else {
			pdf.ClearError()
		}
	}

	pdf.SetFont(defaultFont, "", 10)
	html := pdf.HTMLBasicNew()
	html.Write(5, tr(FillPlaceholders(*tpl.CustomHTML, doc, tpl)))

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render html template pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FillPlaceholders replaces every known token in body with the document value.
// Unknown tokens are left untouched.
func FillPlaceholders(body string, doc models.ReportCardData, tpl models.ReportCardTemplate) string {
	birthDate := ""
	if doc.Student.BirthDate != nil {
		birthDate = doc.Student.BirthDate.Format("02/01/2006")
	}
	classAverage := formatOptionalScore(doc.ClassAverage)

	replacer := strings.NewReplacer(
		PlaceholderSchoolName, markupEscaper.Replace(tpl.SchoolName),
		PlaceholderHeaderText, markupEscaper.Replace(tpl.HeaderText),
		PlaceholderFooterText, markupEscaper.Replace(tpl.FooterText),
		PlaceholderStudentName, markupEscaper.Replace(doc.Student.FullName()),
		PlaceholderBirthDate, birthDate,
		PlaceholderClassName, markupEscaper.Replace(doc.ClassName),
		PlaceholderProgramName, markupEscaper.Replace(optionalText(doc.ProgramName)),
		PlaceholderSchoolYear, markupEscaper.Replace(doc.SchoolYear),
		PlaceholderSemester, markupEscaper.Replace(doc.Semester),
		PlaceholderSubjects, subjectsHTML(doc, tpl),
		PlaceholderStudentAverage, formatScore(doc.StudentAverage),
		PlaceholderClassAverage, classAverage,
		PlaceholderAppreciation, markupEscaper.Replace(optionalText(doc.GeneralAppreciation)),
	)
	return replacer.Replace(body)
}

func subjectsHTML(doc models.ReportCardData, tpl models.ReportCardTemplate) string {
	if len(doc.SubjectAverages) == 0 {
		return "<i>Aucune note pour cette période</i><br>"
	}
	var b strings.Builder
	for _, s := range doc.SubjectAverages {
		fmt.Fprintf(&b, "<b>%s</b> (coef. %s) : %s / 20",
			markupEscaper.Replace(s.Subject), formatCoefficient(s.Weighting), formatScore(s.Average))
		if tpl.ShowClassStats {
			fmt.Fprintf(&b, " | classe %s, min %s, max %s",
				formatOptionalScore(s.ClassAverage), formatOptionalScore(s.MinAverage), formatOptionalScore(s.MaxAverage))
		}
		if tpl.ShowAppreciations && s.Appreciation != nil {
			fmt.Fprintf(&b, " | <i>%s</i>", markupEscaper.Replace(*s.Appreciation))
		}
		b.WriteString("<br>")
		if tpl.ShowIndividualGrades {
			for _, g := range s.IndividualGrades {
				fmt.Fprintf(&b, "    %s : %s / %s<br>", markupEscaper.Replace(g.AssessmentName), formatCoefficient(g.Grade), formatCoefficient(g.MaxGrade))
			}
		}
	}
	return b.String()
}
