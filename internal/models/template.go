package models

import "time"

// ReportCardTemplate describes the visual layout of a rendered report card.
type ReportCardTemplate struct {
	ID                   string    `db:"id" json:"id,omitempty"`
	Name                 string    `db:"name" json:"name"`
	IsDefault            bool      `db:"is_default" json:"is_default"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	SchoolName           string    `db:"school_name" json:"school_name"`
	PrimaryColor         string    `db:"primary_color" json:"primary_color"`
	SecondaryColor       string    `db:"secondary_color" json:"secondary_color"`
	LogoURL              *string   `db:"logo_url" json:"logo_url,omitempty"`
	HeaderText           string    `db:"header_text" json:"header_text"`
	FooterText           string    `db:"footer_text" json:"footer_text"`
	ShowClassStats       bool      `db:"show_class_stats" json:"show_class_stats"`
	ShowAppreciations    bool      `db:"show_appreciations" json:"show_appreciations"`
	ShowIndividualGrades bool      `db:"show_individual_grades" json:"show_individual_grades"`
	ShowPhoto            bool      `db:"show_photo" json:"show_photo"`
	CustomHTML           *string   `db:"custom_html" json:"custom_html,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"-"`
	UpdatedAt            time.Time `db:"updated_at" json:"-"`
}

// DefaultReportCardTemplate is used when no template is marked active.
func DefaultReportCardTemplate() ReportCardTemplate {
	return ReportCardTemplate{
		Name:              "Default",
		IsDefault:         true,
		IsActive:          true,
		PrimaryColor:      "#1F3A5F",
		SecondaryColor:    "#E8EEF5",
		HeaderText:        "Bulletin de notes",
		ShowClassStats:    true,
		ShowAppreciations: true,
		ShowPhoto:         true,
	}
}

// HasCustomHTML reports whether the template carries its own HTML body.
func (t ReportCardTemplate) HasCustomHTML() bool {
	return t.CustomHTML != nil && *t.CustomHTML != ""
}
