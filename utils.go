package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"

	"studyboard/element"
	"studyboard/engine"
)

func (m *model) getCurrentBuffer() *Buffer {
	if len(m.buffers) == 0 {
		return nil
	}
	return &m.buffers[m.currentBufferIndex]
}

func (m *model) board() *engine.Board {
	if buf := m.getCurrentBuffer(); buf != nil {
		return buf.board
	}
	return nil
}

func (m *model) addNewBuffer() error {
	name := fmt.Sprintf("Board %d", len(m.buffers)+1)
	b, err := engine.New(engine.Options{
		Name:        name,
		Sizing:      m.config.Sizing,
		Theme:       m.config.Theme,
		PaletteFile: m.config.PaletteFile,
		Author:      m.config.Author,
	})
	if err != nil {
		return err
	}
	if err := b.Mount(m.screen); err != nil {
		b.Close()
		return err
	}
	h := newHistory()
	unwatch := b.Store().Subscribe(h.observe)
	m.buffers = append(m.buffers, Buffer{board: b, history: h, name: name, unwatch: unwatch})
	m.currentBufferIndex = len(m.buffers) - 1
	logrus.WithField("board", name).Info("Opened board")
	return nil
}

func (m *model) closeBuffer() {
	buf := m.getCurrentBuffer()
	if buf == nil {
		return
	}
	buf.unwatch()
	buf.board.Close()
	m.buffers = append(m.buffers[:m.currentBufferIndex], m.buffers[m.currentBufferIndex+1:]...)
	if m.currentBufferIndex >= len(m.buffers) {
		m.currentBufferIndex = len(m.buffers) - 1
	}
	if m.currentBufferIndex < 0 {
		m.currentBufferIndex = 0
	}
}

func (m *model) closeAll() {
	for _, buf := range m.buffers {
		buf.unwatch()
		buf.board.Close()
	}
	m.buffers = nil
}

// pasteText adds the clipboard text as a text element in the middle of the
// view.
func (m *model) pasteText() error {
	b := m.board()
	if b == nil {
		return nil
	}
	raw, err := readClipboardText()
	if err != nil {
		return fmt.Errorf("failed to read clipboard: %w", err)
	}
	text := cleanClipboardText(raw)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("clipboard is empty")
	}

	pos := b.Coordinates().ScreenToWorld(m.viewCenter())
	e, err := element.New(element.KindText, pos, element.Style{}, m.config.Author, timeNow())
	if err != nil {
		return err
	}
	t := e.(*element.Text)
	t.Text = text
	t.FontSize = pasteFont
	longest := 0
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		longest = max(longest, len(line))
	}
	t.Size.Width = float64(longest) * pasteFont * 0.6
	t.Size.Height = float64(len(lines)) * pasteFont * 1.2
	return b.Store().Add(t)
}

func readClipboardText() (string, error) {
	if runtime.GOOS == "darwin" {
		if output, err := exec.Command("pbpaste", "-Prefer", "txt").Output(); err == nil {
			return string(output), nil
		}
	}
	return clipboard.ReadAll()
}

func isRTF(text string) bool {
	return strings.HasPrefix(text, "{\\rtf") || strings.Contains(text, "\\rtf1")
}

func isHTML(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "<") &&
		(strings.Contains(text, "<html") || strings.Contains(text, "<body") || strings.Contains(text, "<div"))
}

// extractTextFromRTF keeps the visible text of an RTF document, turning
// \par and \line into newlines and \tab into tabs.
func extractTextFromRTF(rtf string) string {
	var result strings.Builder
	data := []byte(rtf)
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == '{' || b == '}':
		case b == '\\' && i+1 < len(data):
			next := data[i+1]
			switch {
			case next == '\'' && i+3 < len(data):
				if val, err := strconv.ParseUint(string(data[i+2:i+4]), 16, 8); err == nil {
					result.WriteByte(byte(val))
				}
				i += 3
			case next == '\\' || next == '{' || next == '}':
				result.WriteByte(next)
				i++
			case next == '~' || next == '_':
				result.WriteByte(' ')
				i++
			case isLetter(next):
				start := i + 1
				for i+1 < len(data) && isLetter(data[i+1]) {
					i++
				}
				word := string(data[start : i+1])
				for i+1 < len(data) && (data[i+1] == '-' || (data[i+1] >= '0' && data[i+1] <= '9')) {
					i++
				}
				if i+1 < len(data) && data[i+1] == ' ' {
					i++
				}
				switch word {
				case "par", "line":
					result.WriteByte('\n')
				case "tab":
					result.WriteByte('\t')
				}
			default:
				i++
			}
		case b >= 32 && b < 127:
			result.WriteByte(b)
		}
	}
	return result.String()
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

var htmlEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

func extractTextFromHTML(html string) string {
	var result strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}
	return htmlEntities.Replace(result.String())
}

func cleanClipboardText(text string) string {
	switch {
	case isRTF(text):
		text = extractTextFromRTF(text)
	case isHTML(text):
		text = extractTextFromHTML(text)
	}
	var result strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\r' || r == '\t' || r >= 32 {
			result.WriteRune(r)
		}
	}
	normalized := strings.ReplaceAll(result.String(), "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.TrimRight(normalized, "\n")
}
