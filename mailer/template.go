package mailer

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"

	"github.com/civicworks/remedy/db"
	"github.com/civicworks/remedy/helpers"
	"github.com/civicworks/remedy/logger"
)

// FallbackBody is sent when the caller-supplied template cannot be
// rendered. Dispatch never aborts on a formatting failure; the recipient
// gets this placeholder instead.
const FallbackBody = "Error preparing complaint details."

const unknownField = "Unknown"

// templateData is the set of placeholders available to notification
// templates: {{.Name}}, {{.Email}}, {{.Contact}} and {{.Address}}.
type templateData struct {
	Name    string
	Email   string
	Contact string
	Address string
}

// Render fills the caller-supplied template with complaint details. Name is
// the local part of the submitter's email, missing contact fields default
// to "Unknown" and absent coordinates to "N/A". Any template parse or
// execution failure yields FallbackBody rather than an error.
func Render(c *db.Complaint, tmplText string) string {
	email := c.UserEmail
	if email == "" {
		email = unknownField
	}
	contact := c.Contact
	if contact == "" {
		contact = unknownField
	}

	data := templateData{
		Name:    helpers.LocalPart(email),
		Email:   email,
		Contact: contact,
		Address: fmt.Sprintf("Lat: %s, Lon: %s", formatCoord(c.Latitude), formatCoord(c.Longitude)),
	}

	tmpl, err := template.New("notification").Parse(tmplText)
	if err != nil {
		logger.Warn("failed to parse notification template", "error", err)
		return FallbackBody
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logger.Warn("failed to render notification template", "error", err)
		return FallbackBody
	}
	return buf.String()
}

func formatCoord(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
