package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

const (
	pageWidth    = 190.0
	photoWidth   = 28.0
	photoHeight  = 35.0
	photoName    = "student-photo"
	defaultFont  = "Arial"
	rowHeight    = 7.0
	detailHeight = 5.5
)

var (
	defaultPrimary   = [3]int{31, 58, 95}
	defaultSecondary = [3]int{232, 238, 245}
)

// ReportCardPDF lays out a report card natively with gofpdf.
type ReportCardPDF struct{}

// NewReportCardPDF constructs the native report card renderer.
func NewReportCardPDF() *ReportCardPDF {
	return &ReportCardPDF{}
}

type column struct {
	title string
	width float64
	align string
	value func(models.SubjectAverage) string
}

// Render draws the header, the student block, the subject table and the averages.
func (r *ReportCardPDF) Render(doc models.ReportCardData, tpl models.ReportCardTemplate, photo *Photo) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	primary := parseHexColor(tpl.PrimaryColor, defaultPrimary)
	secondary := parseHexColor(tpl.SecondaryColor, defaultSecondary)

	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 18)
	if tpl.FooterText != "" {
		pdf.SetFooterFunc(func() {
			pdf.SetY(-14)
			pdf.SetFont(defaultFont, "I", 8)
			pdf.SetTextColor(110, 110, 110)
			pdf.CellFormat(0, 5, tr(tpl.FooterText), "", 0, "C", false, 0, "")
		})
	}
	pdf.AddPage()

	r.header(pdf, tr, doc, tpl, primary)
	r.studentBlock(pdf, tr, doc, tpl, photo)
	r.subjectTable(pdf, tr, doc, tpl, primary, secondary)
	r.summary(pdf, tr, doc, tpl)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render report card pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *ReportCardPDF) header(pdf *gofpdf.Fpdf, tr func(string) string, doc models.ReportCardData, tpl models.ReportCardTemplate, primary [3]int) {
	pdf.SetTextColor(primary[0], primary[1], primary[2])
	if tpl.SchoolName != "" {
		pdf.SetFont(defaultFont, "B", 15)
		pdf.CellFormat(0, 8, tr(strings.ToUpper(tpl.SchoolName)), "", 1, "C", false, 0, "")
	}
	title := tpl.HeaderText
	if title == "" {
		title = "Bulletin de notes"
	}
	pdf.SetFont(defaultFont, "B", 13)
	pdf.CellFormat(0, 8, tr(title), "", 1, "C", false, 0, "")
	pdf.SetFont(defaultFont, "", 10)
	pdf.CellFormat(0, 6, tr(periodTitle(doc)), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

func (r *ReportCardPDF) studentBlock(pdf *gofpdf.Fpdf, tr func(string) string, doc models.ReportCardData, tpl models.ReportCardTemplate, photo *Photo) {
	top := pdf.GetY()
	textWidth := pageWidth
	if tpl.ShowPhoto && photo != nil && len(photo.Data) > 0 {
		opts := gofpdf.ImageOptions{ImageType: photo.ImageType}
		pdf.RegisterImageOptionsReader(photoName, opts, bytes.NewReader(photo.Data))
		if pdf.Ok() {
			pdf.ImageOptions(photoName, 10+pageWidth-photoWidth, top, photoWidth, photoHeight, false, opts, 0, "")
			textWidth = pageWidth - photoWidth - 4
		} else {
			// A corrupt photo must not fail the whole report card.
			pdf.ClearError()
		}
	}

	lines := [][2]string{
		{"Nom", doc.Student.FullName()},
		{"Classe", doc.ClassName},
	}
	if doc.Student.BirthDate != nil {
		lines = append(lines, [2]string{"Date de naissance", doc.Student.BirthDate.Format("02/01/2006")})
	}
	if doc.ProgramName != nil {
		lines = append(lines, [2]string{"Filière", *doc.ProgramName})
	}
	for _, line := range lines {
		pdf.SetFont(defaultFont, "B", 10)
		pdf.CellFormat(40, 6, tr(line[0]+" :"), "", 0, "", false, 0, "")
		pdf.SetFont(defaultFont, "", 10)
		pdf.CellFormat(textWidth-40, 6, tr(line[1]), "", 1, "", false, 0, "")
	}

	if bottom := top + photoHeight; textWidth < pageWidth && pdf.GetY() < bottom {
		pdf.SetY(bottom)
	}
	pdf.Ln(5)
}

func (r *ReportCardPDF) columns(tpl models.ReportCardTemplate) []column {
	cols := []column{
		{title: "Matière", align: "L", value: func(s models.SubjectAverage) string { return s.Subject }},
		{title: "Coef.", width: 14, align: "C", value: func(s models.SubjectAverage) string { return formatCoefficient(s.Weighting) }},
		{title: "Moyenne", width: 20, align: "C", value: func(s models.SubjectAverage) string { return formatScore(s.Average) }},
	}
	if tpl.ShowClassStats {
		cols = append(cols,
			column{title: "Moy. classe", width: 22, align: "C", value: func(s models.SubjectAverage) string { return formatOptionalScore(s.ClassAverage) }},
			column{title: "Min", width: 16, align: "C", value: func(s models.SubjectAverage) string { return formatOptionalScore(s.MinAverage) }},
			column{title: "Max", width: 16, align: "C", value: func(s models.SubjectAverage) string { return formatOptionalScore(s.MaxAverage) }},
		)
	}
	if tpl.ShowAppreciations {
		cols = append(cols, column{title: "Appréciation", width: 60, align: "L", value: func(s models.SubjectAverage) string { return optionalText(s.Appreciation) }})
	}

	used := 0.0
	for _, c := range cols[1:] {
		used += c.width
	}
	cols[0].width = pageWidth - used
	return cols
}

func (r *ReportCardPDF) subjectTable(pdf *gofpdf.Fpdf, tr func(string) string, doc models.ReportCardData, tpl models.ReportCardTemplate, primary, secondary [3]int) {
	cols := r.columns(tpl)

	pdf.SetFont(defaultFont, "B", 9)
	pdf.SetFillColor(primary[0], primary[1], primary[2])
	pdf.SetTextColor(255, 255, 255)
	for _, c := range cols {
		pdf.CellFormat(c.width, 8, tr(c.title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)

	if len(doc.SubjectAverages) == 0 {
		pdf.SetFont(defaultFont, "I", 9)
		pdf.CellFormat(pageWidth, rowHeight, tr("Aucune note pour cette période"), "1", 1, "C", false, 0, "")
		return
	}

	pdf.SetFillColor(secondary[0], secondary[1], secondary[2])
	for i, subject := range doc.SubjectAverages {
		fill := i%2 == 1
		pdf.SetFont(defaultFont, "", 9)
		for _, c := range cols {
			pdf.CellFormat(c.width, rowHeight, fit(pdf, tr, c.value(subject), c.width-2), "1", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)

		if tpl.ShowIndividualGrades {
			pdf.SetFont(defaultFont, "I", 8)
			for _, g := range subject.IndividualGrades {
				line := fmt.Sprintf("   %s : %s / %s (coef. %s)", g.AssessmentName, formatCoefficient(g.Grade), formatCoefficient(g.MaxGrade), formatCoefficient(g.Weighting))
				pdf.CellFormat(pageWidth, detailHeight, tr(line), "LR", 1, "L", false, 0, "")
			}
		}
	}
	pdf.CellFormat(pageWidth, 0, "", "T", 1, "", false, 0, "")
}

func (r *ReportCardPDF) summary(pdf *gofpdf.Fpdf, tr func(string) string, doc models.ReportCardData, tpl models.ReportCardTemplate) {
	pdf.Ln(5)
	pdf.SetFont(defaultFont, "B", 11)
	pdf.CellFormat(60, 7, tr("Moyenne générale :"), "", 0, "", false, 0, "")
	pdf.CellFormat(40, 7, formatScore(doc.StudentAverage)+" / 20", "", 1, "", false, 0, "")
	if tpl.ShowClassStats {
		pdf.SetFont(defaultFont, "", 10)
		pdf.CellFormat(60, 7, tr("Moyenne de la classe :"), "", 0, "", false, 0, "")
		pdf.CellFormat(40, 7, tr(formatOptionalScore(doc.ClassAverage)), "", 1, "", false, 0, "")
	}
	if tpl.ShowAppreciations && doc.GeneralAppreciation != nil && *doc.GeneralAppreciation != "" {
		pdf.Ln(3)
		pdf.SetFont(defaultFont, "B", 10)
		pdf.CellFormat(0, 6, tr("Appréciation générale"), "", 1, "", false, 0, "")
		pdf.SetFont(defaultFont, "", 10)
		pdf.MultiCell(0, 5, tr(*doc.GeneralAppreciation), "", "", false)
	}
}

// fit translates s and shortens it with an ellipsis until it fits width.
func fit(pdf *gofpdf.Fpdf, tr func(string) string, s string, width float64) string {
	if pdf.GetStringWidth(tr(s)) <= width {
		return tr(s)
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(tr(string(runes)+"...")) > width {
		runes = runes[:len(runes)-1]
	}
	return tr(string(runes) + "...")
}
