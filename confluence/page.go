package confluence

import (
	"fmt"
	"strings"
)

// ActionItem is one entry in the Action Items section. Key is the
// issue tracker key when a ticket was created for the item.
type ActionItem struct {
	Key         string
	Description string
	Assignee    string
}

// MeetingPage holds everything that goes onto a published meeting
// page. Empty sections are omitted from the output.
type MeetingPage struct {
	Title          string
	Date           string
	Summary        string
	KeyPoints      []string
	Decisions      []string
	ActionItems    []ActionItem
	Transcript     string
	TrackerBaseURL string
}

// BuildMeetingPage renders a page in Confluence storage format. The
// transcript goes inside an expand macro so long recordings do not
// dominate the page.
func BuildMeetingPage(p MeetingPage) string {
	var b strings.Builder

	title := p.Title
	if title == "" {
		title = "Meeting " + p.Date
	}
	fmt.Fprintf(&b, "<h1>%s</h1>\n", escapeHTML(title))
	if p.Date != "" {
		fmt.Fprintf(&b, "<p><strong>Date:</strong> %s</p>\n", escapeHTML(p.Date))
	}
	b.WriteString("<hr/>\n")

	b.WriteString("<h2>Summary</h2>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", escapeHTML(p.Summary))

	writeListSection(&b, "Key Points", p.KeyPoints)
	writeListSection(&b, "Decisions", p.Decisions)

	if len(p.ActionItems) > 0 {
		b.WriteString("<h2>Action Items</h2>\n<ul>\n")
		for _, item := range p.ActionItems {
			assignee := item.Assignee
			if assignee == "" {
				assignee = "Unassigned"
			}
			if item.Key != "" && p.TrackerBaseURL != "" {
				fmt.Fprintf(&b, `<li><a href="%s/browse/%s">%s</a>: %s (%s)</li>`+"\n",
					strings.TrimRight(p.TrackerBaseURL, "/"), item.Key,
					escapeHTML(item.Key), escapeHTML(item.Description), escapeHTML(assignee))
			} else {
				fmt.Fprintf(&b, "<li>%s (%s)</li>\n", escapeHTML(item.Description), escapeHTML(assignee))
			}
		}
		b.WriteString("</ul>\n")
	}

	if p.Transcript != "" {
		b.WriteString("<h2>Transcript</h2>\n")
		b.WriteString(`<ac:structured-macro ac:name="expand">`)
		b.WriteString(`<ac:parameter ac:name="title">Click to expand full transcript</ac:parameter>`)
		b.WriteString("<ac:rich-text-body>\n")
		for _, para := range strings.Split(p.Transcript, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			fmt.Fprintf(&b, "<p>%s</p>\n", escapeHTML(para))
		}
		b.WriteString("</ac:rich-text-body></ac:structured-macro>\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeListSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "<h2>%s</h2>\n<ul>\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "<li>%s</li>\n", escapeHTML(item))
	}
	b.WriteString("</ul>\n")
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
