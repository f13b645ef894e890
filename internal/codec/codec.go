// Package codec converts between a single line of Markdown text and a
// structured task. Parsing and formatting are inverses for every field the
// text encodes: id, title, completion, priority, due date and labels.
package codec

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/vsync/internal/models"
)

// ErrNotTask is returned by Parse for lines that do not begin with a
// checkbox marker.
var ErrNotTask = errors.New("not a task line")

// ErrNoTitle is returned by Format for tasks without a title.
var ErrNoTitle = errors.New("task title is required")

const (
	dueMarker  = "📅"
	doneMarker = "✅"
	// Tasks parsed from text carry a fixed midday time so that timezone
	// conversions cannot shift the calendar day.
	defaultClock = "12:00:00"
)

var (
	checkboxRe   = regexp.MustCompile(`^[ \t]*[-*]\s+\[(x|X| )\]\s`)
	idRe         = regexp.MustCompile(`\[vikunja_id::\s*(\d+)\]`)
	dueDateRe    = regexp.MustCompile(`(?:🗓️|📅|📆|🗓)\s?(\d{4}-\d{2}-\d{2})(T\d{2}:\d{2}:\d{2}Z?)?`)
	doneDateRe   = regexp.MustCompile(`✅\s?(\d{4}-\d{2}-\d{2})(T\d{2}:\d{2}:\d{2}Z?)?`)
	labelRe      = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)
	labelTokenRe = regexp.MustCompile(`(^|\s)#[\p{L}\p{N}_-]+`)
	priorityRe   = regexp.MustCompile(`\s!!([1-4])(\s|$)`)
	linkRe       = regexp.MustCompile(`\[link\]\(.*?\)`)
	inlineMetaRe = regexp.MustCompile(`%%\[\w+::\s*[^\]]*\]%%`)
	idMarkerRe   = regexp.MustCompile(`\[vikunja_id::\s*\d*\]`)
	checkedRe    = regexp.MustCompile(`^[ \t]*[-*]\s+\[(x|X)\]\s`)
)

// Codec parses and formats task lines in the emoji text format.
type Codec struct {
	// Host is the Vikunja base URL used for generated task links.
	Host string
	// DefaultProjectID is assigned to every parsed task.
	DefaultProjectID int64
	// KeepTags leaves #tags in the title text instead of stripping them.
	// Only tags listed in KeepTagExceptions are still removed.
	KeepTags          bool
	KeepTagExceptions []string
}

// Parse extracts a task from one line of text. Lines that do not start with
// a checkbox marker fail with ErrNotTask.
func (c *Codec) Parse(line string) (models.Task, error) {
	if !checkboxRe.MatchString(line) {
		return models.Task{}, fmt.Errorf("codec: %w: %q", ErrNotTask, line)
	}

	task := models.Task{
		ID:        parseID(line),
		Done:      checkedRe.MatchString(line),
		DueDate:   parseDate(dueDateRe, line),
		Labels:    parseLabels(line),
		Priority:  parsePriority(line),
		ProjectID: c.DefaultProjectID,
	}
	if task.Done {
		task.DoneAt = parseDate(doneDateRe, line)
	}
	task.Title = c.parseTitle(line)
	return task, nil
}

// Format renders a task as one line of text. The field order is fixed:
// checkbox, title, priority, due date, labels, link, id marker, done date.
// Every field Parse extracts is emitted again, so formatting a task and
// parsing the result loses nothing.
func (c *Codec) Format(task models.Task) (string, error) {
	if task.Title == "" {
		return "", fmt.Errorf("codec: %w", ErrNoTitle)
	}

	parts := []string{task.Title}

	if task.Priority != models.PriorityUnset && models.IsValidPriority(task.Priority) {
		parts = append(parts, fmt.Sprintf("!!%d", task.Priority))
	}
	if !task.DueDate.IsZero() {
		parts = append(parts, dueMarker+" "+formatDate(task.DueDate))
	}
	if !c.KeepTags {
		for _, label := range task.Labels {
			parts = append(parts, "#"+label.Title)
		}
	}
	if task.ID != 0 {
		parts = append(parts, fmt.Sprintf("[link](%s/tasks/%d)", strings.TrimRight(c.Host, "/"), task.ID))
		parts = append(parts, fmt.Sprintf("[vikunja_id:: %d]", task.ID))
	}
	if task.Done && !task.DoneAt.IsZero() {
		parts = append(parts, doneMarker+" "+formatDate(task.DoneAt))
	}

	box := " "
	if task.Done {
		box = "x"
	}
	return fmt.Sprintf("- [%s] %s", box, strings.Join(parts, " ")), nil
}

// parseTitle strips all recognized metadata from the line and returns the
// remaining text. Strip order follows extraction precedence so that partial
// overlaps (a date inside a link, for example) cannot leak into the title.
func (c *Codec) parseTitle(line string) string {
	title := inlineMetaRe.ReplaceAllString(line, "")
	title = linkRe.ReplaceAllString(title, "")
	title = priorityRe.ReplaceAllString(title, " ")
	title = dueDateRe.ReplaceAllString(title, "")
	title = doneDateRe.ReplaceAllString(title, "")

	if c.KeepTags {
		for _, tag := range c.KeepTagExceptions {
			title = strings.ReplaceAll(title, tag, "")
		}
	} else {
		title = labelTokenRe.ReplaceAllString(title, "$1")
	}

	title = checkboxRe.ReplaceAllString(title, "")
	title = idMarkerRe.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " ")
}

func parseID(line string) int64 {
	m := idRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// formatDate renders a date token. The default midday time stays implicit;
// any other time of day is written out so Parse recovers it exactly.
func formatDate(t time.Time) string {
	t = t.UTC()
	if t.Format("15:04:05") == defaultClock {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02T15:04:05Z")
}

// parseDate reads an emoji-marked date token. A missing time component
// defaults to midday UTC.
func parseDate(re *regexp.Regexp, line string) time.Time {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}
	}
	clock := defaultClock
	if m[2] != "" {
		clock = strings.TrimSuffix(strings.TrimPrefix(m[2], "T"), "Z")
	}
	t, err := time.Parse("2006-01-02T15:04:05", m[1]+"T"+clock)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseLabels(line string) []models.Label {
	matches := labelRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}
	labels := make([]models.Label, 0, len(matches))
	for _, m := range matches {
		labels = append(labels, models.Label{Title: m[1]})
	}
	return labels
}

func parsePriority(line string) int {
	m := priorityRe.FindStringSubmatch(line)
	if m == nil {
		return models.PriorityUnset
	}
	p, _ := strconv.Atoi(m[1])
	return p
}
