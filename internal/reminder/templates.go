package reminder

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"projecttracker/internal/mail"
)

// Data feeds both reminder bodies.
type Data struct {
	ProjectName string
	Description string
	Stage       string
	DueDate     string
	Person      string
	LeadDays    int
}

var (
	textTmpl = texttemplate.Must(texttemplate.New("reminder.txt").Parse(reminderText))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("reminder.html").Parse(reminderHTML))
)

// BuildReminder renders the deadline reminder for one stage.
func BuildReminder(to string, data Data) (mail.Message, error) {
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return mail.Message{}, fmt.Errorf("render reminder text: %w", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return mail.Message{}, fmt.Errorf("render reminder html: %w", err)
	}
	return mail.Message{
		To:      mail.Addresses{to},
		Subject: "Project Deadline Reminder - " + data.ProjectName,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// stageTitle turns "electrical-design" into "electrical design".
func stageTitle(id string) string {
	return strings.ReplaceAll(id, "-", " ")
}

const reminderText = `Dear Team,

This is a reminder that the {{.Stage}} stage for project "{{.ProjectName}}" is due in {{.LeadDays}} days.

Project Details:
- Project Name: {{.ProjectName}}
- Description: {{.Description}}
- Stage: {{.Stage}}
- Due Date: {{.DueDate}}
- Person in Charge: {{.Person}}

Please ensure timely completion.

Best regards,
Projects Team
`

const reminderHTML = `<h3>Project Deadline Reminder</h3>
<p>Dear Team,</p>
<p>This is a reminder that the <strong>{{.Stage}}</strong> stage for project "<strong>{{.ProjectName}}</strong>" is due in {{.LeadDays}} days.</p>
<h4>Project Details:</h4>
<ul>
  <li><strong>Project Name:</strong> {{.ProjectName}}</li>
  <li><strong>Description:</strong> {{.Description}}</li>
  <li><strong>Stage:</strong> {{.Stage}}</li>
  <li><strong>Due Date:</strong> {{.DueDate}}</li>
  <li><strong>Person in Charge:</strong> {{.Person}}</li>
</ul>
<p>Please ensure timely completion.</p>
<p>Best regards,<br>Projects Team</p>
`
