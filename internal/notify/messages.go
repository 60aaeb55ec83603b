package notify

import (
	"fmt"
	"strings"
)

// message is a rendered notification title and body
type message struct {
	title string
	body  string
}

func noun(subtask bool) string {
	if subtask {
		return "subtask"
	}
	return "task"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// lifecycleMessage renders completion and overdue wording. The assignee is addressed in
// the first person; everyone else gets a third-person sentence naming the project.
func lifecycleMessage(kind Kind, subtask, toAssignee bool, subject, actorName, boardName string) message {
	n := noun(subtask)
	switch kind.base() {
	case kindOverdue:
		title := titleCase(n) + " overdue"
		if toAssignee {
			return message{title, fmt.Sprintf("Your %s %q is overdue", n, subject)}
		}
		return message{title, fmt.Sprintf("The %s %q in project %q is overdue", n, subject, boardName)}
	default:
		title := titleCase(n) + " completed"
		if toAssignee {
			return message{title, fmt.Sprintf("Your %s %q was marked complete by %s", n, subject, actorName)}
		}
		return message{title, fmt.Sprintf("The %s %q was marked complete by %s in project %q", n, subject, actorName, boardName)}
	}
}

func assignedMessage(subtask bool, subject, actorName, boardName string) message {
	n := noun(subtask)
	return message{
		"New " + n + " assignment",
		fmt.Sprintf("%s assigned you to the %s %q in project %q", actorName, n, subject, boardName),
	}
}

func unassignedMessage(subtask bool, subject, actorName, boardName string) message {
	n := noun(subtask)
	return message{
		titleCase(n) + " unassigned",
		fmt.Sprintf("%s removed you from the %s %q in project %q", actorName, n, subject, boardName),
	}
}

const commentExcerptLen = 80

func commentMessage(actorName, cardTitle, text string) message {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > commentExcerptLen {
		text = string(r[:commentExcerptLen]) + "..."
	}
	body := fmt.Sprintf("%s commented on %q", actorName, cardTitle)
	if text != "" {
		body += ": " + text
	}
	return message{"New comment", body}
}

func invitationMessage(actorName, boardName, role string) message {
	return message{
		"Project invitation",
		fmt.Sprintf("%s added you to project %q as %s", actorName, boardName, role),
	}
}
