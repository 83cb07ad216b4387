package leads

import (
	"strings"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"

	"leadsdash/models"
	"leadsdash/utils"
)

// created_at layouts without a zone are read in the display location
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseCreatedAt reads the server's created_at value
func ParseCreatedAt(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders created_at with the locale's date layout. Values that
// cannot be parsed are returned as sent.
func FormatDate(s string, localizer *i18n.Localizer, loc *time.Location) string {
	t, ok := ParseCreatedAt(s, loc)
	if !ok {
		return s
	}
	return t.Format(utils.TOr(localizer, "date_layout", "02/01/2006"))
}

// StatusLabel translates a status, leaving unknown ones verbatim
func StatusLabel(status string, localizer *i18n.Localizer) string {
	return utils.TOr(localizer, "status_"+status, status)
}

// DataLabel translates a collected_data key, leaving unknown ones verbatim
func DataLabel(key string, localizer *i18n.Localizer) string {
	return utils.TOr(localizer, "data_"+key, key)
}

// Summary formats the plain-text block copied to the clipboard for a lead.
// Values are written exactly as the API sent them.
func Summary(lead models.Lead, localizer *i18n.Localizer, loc *time.Location) string {
	bot := "🔴"
	if lead.IsActive {
		bot = "🟢"
	}

	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}

	line(utils.T(localizer, "summary_phone"), lead.ID)
	line(utils.T(localizer, "summary_name"), lead.Name)
	line(utils.T(localizer, "summary_bot"), bot)
	line(utils.T(localizer, "summary_status"), StatusLabel(lead.Status, localizer))
	line(utils.T(localizer, "summary_created"), FormatDate(lead.CreatedAt, localizer, loc))
	b.WriteByte('\n')

	if len(lead.CollectedData) == 0 {
		b.WriteString(" " + utils.T(localizer, "summary_no_collected"))
		return b.String()
	}

	b.WriteString(" " + utils.T(localizer, "summary_collected") + "\n")
	for _, e := range lead.CollectedData {
		line(DataLabel(e.Key, localizer), e.Value)
	}
	return b.String()
}
