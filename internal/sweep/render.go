package sweep

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/paimy-ai/paimy/internal/tools/executor"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// Render formats a briefing as a chat message.
func Render(name string, b *executor.Briefing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "좋은 아침입니다, %s님! %s 업무 브리핑입니다.\n", name, b.Date)

	section := func(title string, tasks []executor.TaskView, withDue bool) {
		if len(tasks) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n*%s* (%d)\n", title, len(tasks))
		for _, t := range tasks {
			line := "• " + t.Name
			if withDue && t.DueDate != "" {
				line += " (마감 " + t.DueDate + ")"
			}
			if t.Project != "" {
				line += " [" + t.Project + "]"
			}
			if t.URL != "" {
				line += " <" + t.URL + ">"
			}
			sb.WriteString(line + "\n")
		}
	}
	section("오늘 마감", b.Today, false)
	section("이번 주 진행 중", b.ThisWeek, true)
	section("지연된 업무", b.Overdue, true)

	return strings.TrimRight(sb.String(), "\n")
}

// WriterNotifier writes briefings to w, one block per person. It is used
// by the command line in place of a chat delivery.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier writing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify implements Notifier.
func (n *WriterNotifier) Notify(ctx context.Context, to protocol.Person, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "── to %s (%s)\n%s\n\n", to.Name(), to.ChatID, text)
	return err
}
