package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"
)

// Studio holds the business details printed in customer messages.
type Studio struct {
	Name    string
	Address string
	Phone   string
}

var hebrewDays = [...]string{"ראשון", "שני", "שלישי", "רביעי", "חמישי", "שישי", "שבת"}

// HebrewDay returns the Hebrew weekday name for t.
func HebrewDay(t time.Time) string {
	return hebrewDays[t.Weekday()]
}

type emailKind int

const (
	emailConfirmation emailKind = iota
	emailDayBefore
	emailDayOf
	emailCancellation
)

type emailData struct {
	Studio   Studio
	Name     string
	Intro    string
	Emoji    string
	Service  string
	Date     string
	Time     string
	Duration int
}

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html dir="rtl" lang="he">
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin:0;padding:0;font-family:'Heebo',Arial,sans-serif;background-color:#FBF6EE;">
<table width="100%" cellpadding="0" cellspacing="0" style="background-color:#FBF6EE;padding:40px 20px;"><tr><td align="center">
<table width="600" cellpadding="0" cellspacing="0" style="background-color:#FFFCF5;border-radius:20px;">
<tr><td style="padding:40px 40px 30px;text-align:center;border-bottom:1px solid rgba(196,163,90,0.2);">
<h1 style="margin:0;font-size:32px;font-weight:300;color:#C4A35A;letter-spacing:8px;">{{.Studio.Name}}</h1>
</td></tr>
<tr><td style="padding:40px;">
<div style="text-align:center;margin-bottom:30px;font-size:48px;">{{.Emoji}}</div>
<h2 style="margin:0 0 10px;font-size:24px;font-weight:400;color:#1A1714;text-align:center;">שלום {{.Name}},</h2>
<p style="margin:0 0 30px;font-size:18px;color:#C4A35A;text-align:center;">{{.Intro}}</p>
<div style="background:#F5EFE3;border-radius:15px;padding:30px;margin-bottom:30px;border-right:4px solid #C4A35A;">
<h3 style="margin:0 0 20px;font-size:16px;color:#C4A35A;">פרטי התור</h3>
<table width="100%" cellpadding="0" cellspacing="0">
<tr><td style="padding:10px 0;color:#8A847C;">טיפול:</td><td style="padding:10px 0;text-align:left;">{{.Service}}</td></tr>
<tr><td style="padding:10px 0;color:#8A847C;">תאריך:</td><td style="padding:10px 0;text-align:left;">{{.Date}}</td></tr>
<tr><td style="padding:10px 0;color:#8A847C;">שעה:</td><td style="padding:10px 0;text-align:left;">{{.Time}}</td></tr>
<tr><td style="padding:10px 0;color:#8A847C;">משך:</td><td style="padding:10px 0;text-align:left;">{{.Duration}} דקות</td></tr>
</table></div>
{{if .Studio.Address}}<div style="text-align:center;margin-bottom:30px;padding:20px;background-color:#FBF6EE;border-radius:10px;">
<p style="margin:0 0 5px;font-size:14px;color:#8A847C;">📍 הכתובת שלנו</p>
<p style="margin:0;font-size:16px;color:#1A1714;">{{.Studio.Address}}</p></div>{{end}}
<div style="background-color:#FFF8E7;border-radius:10px;padding:20px;margin-bottom:20px;">
<p style="margin:0 0 10px;font-size:14px;color:#C4A35A;">⚠️ מדיניות ביטולים</p>
<p style="margin:0;font-size:13px;color:#5C5650;line-height:1.6;">ביטול באותו היום - 50% מעלות הטיפול<br>אי הגעה ללא הודעה - חיוב מלא<br>איחור מעל 15 דקות ללא הודעה - ייחשב כביטול</p>
</div>
{{if .Studio.Phone}}<p style="margin:20px 0 0;font-size:14px;color:#8A847C;text-align:center;">שאלות? התקשרי אלינו: <a href="tel:{{.Studio.Phone}}" style="color:#C4A35A;text-decoration:none;">{{.Studio.Phone}}</a></p>{{end}}
</td></tr>
<tr><td style="padding:30px 40px;background-color:#2C2620;border-radius:0 0 20px 20px;text-align:center;">
<p style="margin:0;font-size:18px;color:#C4A35A;letter-spacing:4px;">{{.Studio.Name}}</p>
</td></tr>
</table></td></tr></table>
</body>
</html>
`))

// renderEmail returns the subject and RTL HTML body for appt.
func renderEmail(kind emailKind, studio Studio, appt *models.Appointment, loc *time.Location) (string, string, error) {
	start := appt.StartAt.In(loc)
	data := emailData{
		Studio:   studio,
		Name:     appt.CustomerName,
		Service:  serviceLabel(appt),
		Date:     fmt.Sprintf("יום %s, %s", HebrewDay(start), start.Format(models.DisplayDateLayout)),
		Time:     start.Format(models.TimeLayout),
		Duration: appt.DurationMinutes,
	}

	var subject string
	switch kind {
	case emailConfirmation:
		subject = "אישור תור - " + studio.Name
		data.Intro, data.Emoji = "התור שלך אושר בהצלחה!", "✨"
	case emailDayBefore:
		subject = "תזכורת לתור מחר - " + studio.Name
		data.Intro, data.Emoji = "רק להזכיר - יש לך תור מחר!", "💅"
	case emailDayOf:
		subject = "תזכורת - התור שלך היום! - " + studio.Name
		data.Intro, data.Emoji = "היום יש לך תור אצלנו!", "🌸"
	case emailCancellation:
		subject = "ביטול תור - " + studio.Name
		data.Intro, data.Emoji = "התור שלך בוטל.", "🗓️"
	default:
		return "", "", fmt.Errorf("unknown email kind %d", kind)
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return subject, buf.String(), nil
}

func serviceLabel(appt *models.Appointment) string {
	if appt.ServiceDisplayName != "" {
		return appt.ServiceDisplayName
	}
	return appt.ServiceName
}

func confirmationSMS(appt *models.Appointment, loc *time.Location) string {
	start := appt.StartAt.In(loc)
	return fmt.Sprintf("התור נקבע ✔️\n%s %s\nLISHAI", start.Format(models.DisplayDateLayout), start.Format(models.TimeLayout))
}

func cancellationSMS() string {
	return "התור בוטל ✔️\nLISHAI"
}

func reminderSMS(appt *models.Appointment, kind string, loc *time.Location) string {
	start := appt.StartAt.In(loc)
	when := "מחר"
	if kind == models.ReminderDayOf {
		when = "היום"
	}
	return fmt.Sprintf("תזכורת 📅\n%s %s %s\nLISHAI", when, start.Format(models.DisplayDateLayout), start.Format(models.TimeLayout))
}

// OTPMessage is the SMS text carrying a verification code.
func OTPMessage(studioName, code string, expiry time.Duration) string {
	return fmt.Sprintf("קוד האימות שלך ב-%s: %s\nתוקף: %d דקות.", studioName, code, int(expiry/time.Minute))
}

func ownerBookingAlert(appt *models.Appointment, loc *time.Location) string {
	start := appt.StartAt.In(loc)
	return fmt.Sprintf("📅 תור חדש\n%s\n%s\n%s\nיום %s %s %s",
		appt.CustomerName, appt.CustomerPhone, serviceLabel(appt),
		HebrewDay(start), start.Format(models.DisplayDateLayout), start.Format(models.TimeLayout))
}

func ownerCancelAlert(appt *models.Appointment, loc *time.Location) string {
	start := appt.StartAt.In(loc)
	return fmt.Sprintf("❌ תור בוטל\n%s\n%s\n%s\nיום %s %s %s",
		appt.CustomerName, appt.CustomerPhone, serviceLabel(appt),
		HebrewDay(start), start.Format(models.DisplayDateLayout), start.Format(models.TimeLayout))
}

// ContactAlert formats a contact-form submission for the owner.
func ContactAlert(name, phone, message string) string {
	return fmt.Sprintf("✉️ פנייה חדשה מהאתר\n%s\n%s\n\n%s", name, phone, message)
}
