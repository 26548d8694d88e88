package notifier

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"deadline-tracker/internal/model"
)

// Severity grades a deadline reminder by how close the deadline is.
type Severity string

const (
	SeverityUrgent  Severity = "urgent"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// SeverityFor returns urgent for 0-1 days, warning for 2-3 and info beyond.
func SeverityFor(leadDays int) Severity {
	switch {
	case leadDays <= 1:
		return SeverityUrgent
	case leadDays <= 3:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func (s Severity) color() string {
	switch s {
	case SeverityUrgent:
		return "#dc3545"
	case SeverityWarning:
		return "#fd7e14"
	default:
		return "#007bff"
	}
}

func (s Severity) icon() string {
	switch s {
	case SeverityUrgent:
		return "🚨"
	case SeverityWarning:
		return "⏰"
	default:
		return "📅"
	}
}

// Message is a rendered reminder ready for a transport.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer turns reminder events into messages, formatting times in loc.
type Renderer struct {
	loc *time.Location
	now func() time.Time
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{loc: loc, now: time.Now}
}

type taskView struct {
	Title    string
	Category string
	Due      string
	Notes    string
	Priority bool
}

type deadlineView struct {
	Name     string
	Headline string
	Color    string
	Icon     string
	Tasks    []taskView
	Year     int
}

type digestView struct {
	Name     string
	Date     string
	Today    []taskView
	Upcoming []taskView
}

// DeadlineSubject follows the count and urgency of the batch.
func DeadlineSubject(count, leadDays int) string {
	word := "tasks"
	if count == 1 {
		word = "task"
	}
	switch leadDays {
	case 0:
		return fmt.Sprintf("🚨 %d academic %s due TODAY!", count, word)
	case 1:
		return fmt.Sprintf("⏰ %d academic %s due TOMORROW!", count, word)
	default:
		return fmt.Sprintf("📅 %d academic %s due in %d days", count, word, leadDays)
	}
}

func headline(count, leadDays int) string {
	noun := "tasks"
	if count == 1 {
		noun = "task"
	}
	switch leadDays {
	case 0:
		return fmt.Sprintf("You have %d %s due TODAY!", count, noun)
	case 1:
		return fmt.Sprintf("You have %d %s due TOMORROW!", count, noun)
	default:
		return fmt.Sprintf("You have %d %s due in %d days.", count, noun, leadDays)
	}
}

func (r *Renderer) views(tasks []model.Task) []taskView {
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		category := strings.TrimSpace(t.Category)
		if category == "" {
			category = "General"
		}
		out = append(out, taskView{
			Title:    strings.TrimSpace(t.Title),
			Category: category,
			Due:      t.DueAt.In(r.loc).Format("Mon 02 Jan 2006 at 15:04"),
			Notes:    strings.TrimSpace(t.Notes),
			Priority: t.IsPriority,
		})
	}
	return out
}

// DeadlineBatch renders one email covering every task in the batch.
func (r *Renderer) DeadlineBatch(user model.User, tasks []model.Task, leadDays int) (Message, error) {
	sev := SeverityFor(leadDays)
	view := deadlineView{
		Name:     user.DisplayName(),
		Headline: headline(len(tasks), leadDays),
		Color:    sev.color(),
		Icon:     sev.icon(),
		Tasks:    r.views(tasks),
		Year:     r.now().In(r.loc).Year(),
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := deadlineHTML.Execute(&htmlBuf, view); err != nil {
		return Message{}, fmt.Errorf("render deadline html: %w", err)
	}
	if err := deadlineText.Execute(&textBuf, view); err != nil {
		return Message{}, fmt.Errorf("render deadline text: %w", err)
	}
	return Message{
		Subject: DeadlineSubject(len(tasks), leadDays),
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

// Digest renders the daily summary email.
func (r *Renderer) Digest(user model.User, today, upcoming []model.Task) (Message, error) {
	date := r.now().In(r.loc).Format("02 Jan 2006")
	view := digestView{
		Name:     user.DisplayName(),
		Date:     date,
		Today:    r.views(today),
		Upcoming: r.views(upcoming),
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := digestHTML.Execute(&htmlBuf, view); err != nil {
		return Message{}, fmt.Errorf("render digest html: %w", err)
	}
	if err := digestText.Execute(&textBuf, view); err != nil {
		return Message{}, fmt.Errorf("render digest text: %w", err)
	}
	return Message{
		Subject: "📚 Your Academic Summary - " + date,
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

// ChatDeadline renders a deadline batch for chat transports using Telegram's HTML subset.
func (r *Renderer) ChatDeadline(tasks []model.Task, leadDays int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", SeverityFor(leadDays).icon(), html.EscapeString(headline(len(tasks), leadDays))))
	for _, t := range r.views(tasks) {
		sb.WriteString(chatLine(t, true))
	}
	return strings.TrimSpace(sb.String())
}

// ChatDigest renders the daily summary for chat transports.
func (r *Renderer) ChatDigest(today, upcoming []model.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📚 <b>Academic summary</b> · %s\n\n", r.now().In(r.loc).Format("02.01.2006")))

	sb.WriteString("🚨 <b>Due today</b>\n")
	if len(today) == 0 {
		sb.WriteString("(nothing due today)\n")
	}
	for _, t := range r.views(today) {
		sb.WriteString(chatLine(t, false))
	}

	sb.WriteString("\n📅 <b>Coming up this week</b>\n")
	if len(upcoming) == 0 {
		sb.WriteString("(no upcoming tasks)\n")
	}
	for _, t := range r.views(upcoming) {
		sb.WriteString(chatLine(t, true))
	}
	return strings.TrimSpace(sb.String())
}

func chatLine(t taskView, withDue bool) string {
	var sb strings.Builder
	sb.WriteString("• ")
	if t.Priority {
		sb.WriteString("🌟 ")
	}
	sb.WriteString(html.EscapeString(t.Title))
	sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(t.Category)))
	if withDue {
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", html.EscapeString(t.Due)))
	}
	sb.WriteByte('\n')
	return sb.String()
}

var deadlineHTML = htmltemplate.Must(htmltemplate.New("deadline").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Academic Deadline Reminder</title></head>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: {{.Color}}; color: white; padding: 30px; border-radius: 15px 15px 0 0; text-align: center;">
    <h1 style="margin: 0; font-size: 24px;">{{.Icon}} Academic Deadline Reminder</h1>
    <p style="margin: 10px 0 0 0;">Hello {{.Name}}!</p>
  </div>
  <div style="background-color: white; padding: 30px; border: 1px solid #dee2e6; border-radius: 0 0 15px 15px;">
    <p style="font-weight: bold; color: {{.Color}};">{{.Headline}}</p>
    <h2 style="color: #212529;">Your Upcoming Tasks:</h2>
    {{range .Tasks}}
    <div style="background-color: #f8f9fa; border: 1px solid #dee2e6; border-radius: 8px; padding: 15px; margin-bottom: 10px;">
      <h3 style="margin: 0 0 10px 0;">{{if .Priority}}🌟 {{end}}{{.Title}}</h3>
      <p style="color: #6c757d; margin: 5px 0;"><strong>Category:</strong> {{.Category}}</p>
      <p style="color: #6c757d; margin: 5px 0;"><strong>Due Date:</strong> {{.Due}}</p>
      {{if .Notes}}<p style="color: #495057; margin: 10px 0 0 0;"><em>{{.Notes}}</em></p>{{end}}
    </div>
    {{end}}
    <p style="color: #6c757d; font-size: 12px; text-align: center;">This reminder was sent because you have email reminders enabled. You can manage your notification preferences in your account settings.</p>
  </div>
  <p style="text-align: center; color: #6c757d; font-size: 12px;">© {{.Year}} Academic Deadline</p>
</body>
</html>`))

var deadlineText = texttemplate.Must(texttemplate.New("deadline").Parse(`Hello {{.Name}}!

{{.Headline}}
{{range .Tasks}}
- {{if .Priority}}[priority] {{end}}{{.Title}} ({{.Category}})
  Due: {{.Due}}{{if .Notes}}
  {{.Notes}}{{end}}
{{end}}
You can manage your notification preferences in your account settings.
`))

var digestHTML = htmltemplate.Must(htmltemplate.New("digest").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Daily Academic Summary</title></head>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #007bff; color: white; padding: 30px; border-radius: 15px 15px 0 0; text-align: center;">
    <h1 style="margin: 0; font-size: 24px;">📚 Your Daily Academic Summary</h1>
    <p style="margin: 10px 0 0 0;">Hello {{.Name}}! · {{.Date}}</p>
  </div>
  <div style="background-color: white; padding: 30px; border: 1px solid #dee2e6; border-radius: 0 0 15px 15px;">
    <h2 style="color: #dc3545;">🚨 Due Today:</h2>
    <ul>
    {{range .Today}}<li><strong>{{.Title}}</strong> <span style="color: #6c757d;">({{.Category}})</span>{{if .Priority}} 🌟{{end}}</li>
    {{else}}<li style="color: #28a745;">No tasks due today! Great job! 🎉</li>
    {{end}}
    </ul>
    <h2 style="color: #fd7e14;">📅 Coming Up This Week:</h2>
    <ul>
    {{range .Upcoming}}<li><strong>{{.Title}}</strong> - <span style="color: #dc3545;">Due: {{.Due}}</span>{{if .Priority}} 🌟{{end}}</li>
    {{else}}<li style="color: #6c757d;">No upcoming tasks in the next week.</li>
    {{end}}
    </ul>
  </div>
</body>
</html>`))

var digestText = texttemplate.Must(texttemplate.New("digest").Parse(`Hello {{.Name}}! Here is your summary for {{.Date}}.

Due today:
{{range .Today}}- {{.Title}} ({{.Category}})
{{else}}- nothing due today
{{end}}
Coming up this week:
{{range .Upcoming}}- {{.Title}}, due {{.Due}}
{{else}}- no upcoming tasks
{{end}}`))
