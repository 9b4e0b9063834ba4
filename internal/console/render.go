package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"rag-chat-client/internal/models"
	"rag-chat-client/internal/session"
)

var (
	userStyle      = color.New(color.FgBlue, color.Bold)
	assistantStyle = color.New(color.FgMagenta, color.Bold)
	errorStyle     = color.New(color.FgRed)
	sourceStyle    = color.New(color.FgCyan)
	matchStyle     = color.New(color.FgHiBlack)
	successStyle   = color.New(color.FgGreen)
)

// RenderMessage writes one conversation turn followed by its sources.
func RenderMessage(w io.Writer, m models.Message) {
	switch m.Role {
	case models.RoleUser:
		userStyle.Fprint(w, "you> ")
		fmt.Fprintln(w, m.Content)
	default:
		assistantStyle.Fprint(w, "assistant> ")
		if strings.HasPrefix(m.Content, session.ErrorPrefix) {
			errorStyle.Fprintln(w, m.Content)
		} else {
			fmt.Fprintln(w, m.Content)
		}
	}

	if len(m.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "  Sources:")
	for i, src := range m.Sources {
		name := src.Filename
		if name == "" {
			name = fmt.Sprintf("source %d", i+1)
		}
		sourceStyle.Fprintf(w, "  [%s]", name)
		matchStyle.Fprintf(w, " %d%% match\n", src.MatchPercent())
		fmt.Fprintf(w, "    %s\n", excerpt(src.Text, 280))
	}
}

// RenderUpload writes the status banner for a settled upload.
func RenderUpload(w io.Writer, r models.UploadResult) {
	if r.OK() {
		successStyle.Fprintln(w, r.Banner())
		return
	}
	errorStyle.Fprintln(w, r.Banner())
}

func excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
