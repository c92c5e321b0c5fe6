package extract

import (
	"regexp"
	"strings"
)

var (
	trailingCommaObject = regexp.MustCompile(`,\s*}`)
	trailingCommaArray  = regexp.MustCompile(`,\s*]`)
)

// textPatterns match spoken task-assignment constructions. Order matters:
// the most specific "name + modal verb + action" form runs first.
var textPatterns = []*regexp.Regexp{
	// "Alice will finish the report by Friday."
	regexp.MustCompile(`(?i)(?P<assignee>\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?:will|should|needs?\s+to|is\s+going\s+to|must)\s+(?:do\s+)?(?P<task>[^.!?]+?)(?:\s+by\s+(?P<date>[^.!?]+))?[.!?]`),
	// "The migration is assigned to Bob"
	regexp.MustCompile(`(?i)(?P<task>[^.!?]+?)\s+is\s+assigned\s+to\s+(?P<assignee>\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	// "Action item: Carol to update the roadmap"
	regexp.MustCompile(`(?i)(?:action\s+item|task)[:\s]+(?P<assignee>[A-Za-z]+(?:\s+[A-Za-z]+)*?)\s+(?:to\s+)(?P<task>[^.!?]+)`),
	// "Dave can handle the deployment"
	regexp.MustCompile(`(?i)(?P<assignee>\b[A-Z][a-z]+)\s+(?:should|could|can)\s+(?:work\s+on|handle|complete|start|begin|finish)\s+(?P<task>[^.!?,]+)`),
}

// matchTextPatterns scans text with the ordered patterns, deduplicating by
// exact description and capping the result.
func matchTextPatterns(text string) []RawTask {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tasks []RawTask
	seen := make(map[string]bool)

	for _, pattern := range textPatterns {
		names := pattern.SubexpNames()
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			var task RawTask
			for i, name := range names {
				if i >= len(match) {
					continue
				}
				switch name {
				case "task":
					task.Description = strings.TrimSpace(match[i])
				case "assignee":
					task.Assignee = strings.TrimSpace(match[i])
				case "date":
					task.DueDate = strings.TrimSpace(match[i])
				}
			}
			if task.Description == "" || seen[task.Description] {
				continue
			}
			seen[task.Description] = true
			tasks = append(tasks, task)
			if len(tasks) >= maxTasks {
				return tasks
			}
		}
	}

	return tasks
}
