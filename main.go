package main

import (
	"fmt"
	"image"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"studyboard/element"
	"studyboard/export"
	"studyboard/interaction"
	"studyboard/sizing"
	"studyboard/theme"
)

var timeNow = time.Now

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logFile, err := setupLogging(config)
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()

	m, err := initialModel(config)
	if err != nil {
		log.Fatal(err)
	}
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.closeAll()
	}
	if err != nil {
		log.Fatal(err)
	}
}

// setupLogging sends logs to a file; stdout belongs to the terminal UI.
func setupLogging(config *Config) (*os.File, error) {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	f, err := os.OpenFile(config.GetSavePath("studyboard.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logrus.SetOutput(f)
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return f, nil
}

func initialModel(config *Config) (model, error) {
	format, _ := export.ParseFormat(config.Export.Format)
	m := model{
		screen:       newTerminal(),
		mode:         ModeNormal,
		exportFormat: format,
		config:       config,
	}
	m.screen.resize(80, 24)
	if err := m.addNewBuffer(); err != nil {
		return m, err
	}
	return m, nil
}

type refreshMsg struct{}

func refreshAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.screen.resize(msg.Width, msg.Height)
		// Resizes are debounced by the boards; redraw once they settle.
		return m, refreshAfter(50 * time.Millisecond)

	case refreshMsg:
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
		} else {
			m.successMessage = "Exported " + msg.path
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg), nil

	case tea.KeyMsg:
		m.errorMessage = ""
		m.successMessage = ""
		if buf := m.getCurrentBuffer(); buf != nil {
			buf.history.beginGesture()
		}
		switch {
		case m.help:
			return m.handleHelpKey(msg.String()), nil
		case m.mode == ModeConfirm:
			return m.handleConfirmKey(msg.String())
		case m.mode == ModeTextInput:
			return m.handleTextInput(msg), nil
		}
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m model) handleKey(key string) (tea.Model, tea.Cmd) {
	b := m.board()
	if b == nil {
		return m, tea.Quit
	}
	switch key {
	case "ctrl+c", "q":
		if m.config.Confirmations {
			m.mode = ModeConfirm
			m.confirmAction = ConfirmQuit
			return m, nil
		}
		return m, tea.Quit
	case "?":
		m.help = true
		return m, nil
	case "u":
		m.getCurrentBuffer().history.undo(b.Store())
	case "ctrl+r":
		m.getCurrentBuffer().history.redo(b.Store())
	case "e":
		m.successMessage = fmt.Sprintf("Exporting %s...", strings.ToUpper(string(m.exportFormat)))
		return m, m.exportBoard()
	case "E":
		m.nextExportFormat()
	case "y":
		if err := m.copySVG(); err != nil {
			m.errorMessage = err.Error()
		} else {
			m.successMessage = "Copied SVG to clipboard"
		}
	case "p":
		if err := m.pasteText(); err != nil {
			m.errorMessage = err.Error()
		}
	case "t":
		next := theme.Dark
		if b.Theme() == theme.Dark {
			next = theme.Light
		}
		if err := b.SetTheme(next); err != nil {
			m.errorMessage = err.Error()
		}
	case "n":
		if err := m.addNewBuffer(); err != nil {
			m.errorMessage = err.Error()
		}
	case "tab":
		m.currentBufferIndex = (m.currentBufferIndex + 1) % len(m.buffers)
	case "shift+tab":
		m.currentBufferIndex = (m.currentBufferIndex + len(m.buffers) - 1) % len(m.buffers)
	case "w":
		if m.config.Confirmations && b.Store().Len() > 0 {
			m.mode = ModeConfirm
			m.confirmAction = ConfirmCloseBuffer
			return m, nil
		}
		return m.closeCurrent()
	case "X":
		m.mode = ModeConfirm
		m.confirmAction = ConfirmClearBoard
	case "enter":
		m.startEditingSelection()
	default:
		if m.selectTool(key) || m.handleNavigation(key) || m.handleTransform(key) {
			return m, nil
		}
		b.HandleKey(key)
	}
	return m, nil
}

func (m model) closeCurrent() (tea.Model, tea.Cmd) {
	m.closeBuffer()
	if len(m.buffers) == 0 {
		return m, tea.Quit
	}
	return m, nil
}

func (m model) handleConfirmKey(key string) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	if key != "y" && key != "Y" {
		return m, nil
	}
	switch m.confirmAction {
	case ConfirmQuit:
		return m, tea.Quit
	case ConfirmCloseBuffer:
		return m.closeCurrent()
	case ConfirmClearBoard:
		if b := m.board(); b != nil {
			for _, e := range b.Elements() {
				_ = b.Store().Remove(e.Header().ID)
			}
		}
	}
	return m, nil
}

func (m model) handleHelpKey(key string) tea.Model {
	switch key {
	case "esc", "q", "?":
		m.help = false
		m.helpScroll = 0
	case "j", "down":
		m.helpScroll++
	case "k", "up":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	}
	return m
}

// startEditingSelection opens the selected text or sticky note for editing.
func (m *model) startEditingSelection() {
	b := m.board()
	id, ok := b.Store().Selected()
	if !ok {
		return
	}
	e, ok := b.Store().Get(id)
	if !ok {
		return
	}
	if l, ok := e.(element.Labeled); ok {
		m.mode = ModeTextInput
		m.editID = id
		m.editText, _ = l.Label()
	}
}

func (m model) handleTextInput(msg tea.KeyMsg) tea.Model {
	b := m.board()
	switch msg.Type {
	case tea.KeyEnter:
		text := m.editText
		err := b.Store().Update(m.editID, func(e element.Element) {
			switch v := e.(type) {
			case *element.Text:
				v.Text = text
				v.Size.Width = max(v.Size.Width, float64(len(text))*v.FontSize*0.6)
			case *element.StickyNote:
				v.Text = text
			}
		})
		if err != nil {
			m.errorMessage = err.Error()
		}
		m.mode = ModeNormal
	case tea.KeyEsc:
		if e, ok := b.Store().Get(m.editID); ok {
			if l, ok := e.(element.Labeled); ok {
				if text, _ := l.Label(); text == "" {
					_ = b.Store().Remove(m.editID)
				}
			}
		}
		m.mode = ModeNormal
	case tea.KeyBackspace:
		if r := []rune(m.editText); len(r) > 0 {
			m.editText = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.editText += " "
	case tea.KeyRunes:
		m.editText += string(msg.Runes)
	}
	return m
}

func (m model) handleMouse(msg tea.MouseMsg) tea.Model {
	b := m.board()
	if b == nil || m.mode != ModeNormal || m.help {
		return m
	}
	ev := interaction.PointerEvent{Screen: mouseToScreen(msg.X, msg.Y)}
	switch msg.Type {
	case tea.MouseLeft:
		if m.pointerDown {
			b.PointerMove(ev)
			return m
		}
		m.pointerDown = true
		buf := m.getCurrentBuffer()
		buf.history.beginGesture()
		buf.history.lastAdded = ""
		b.PointerDown(ev)
		// Text and sticky notes are typed in right after they are placed.
		if id := buf.history.lastAdded; id != "" {
			if e, ok := b.Store().Get(id); ok {
				if _, labeled := e.(element.Labeled); labeled {
					m.mode = ModeTextInput
					m.editID = id
					m.editText = ""
				}
			}
		}
	case tea.MouseMotion:
		if m.pointerDown {
			b.PointerMove(ev)
		}
	case tea.MouseRelease:
		if m.pointerDown {
			m.pointerDown = false
			b.PointerUp(ev)
		}
	case tea.MouseWheelUp:
		b.Zoom(1.1, ev.Screen)
	case tea.MouseWheelDown:
		b.Zoom(1/1.1, ev.Screen)
	}
	return m
}

var (
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#3c3c3c"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#c62828"))
	successStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#81c784"))
	barStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#9e9e9e"))
	activeBufferStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	helpTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196f3"))
)

func (m model) View() string {
	if m.width < 1 || m.height < 3 {
		return ""
	}
	if m.help {
		return m.helpView()
	}
	var result strings.Builder
	result.WriteString(m.renderBufferBar(m.width))
	result.WriteString("\n")
	for _, line := range m.renderCanvas(m.width, m.height-2) {
		result.WriteString(line)
		result.WriteString("\n")
	}
	result.WriteString(m.statusLine())
	return result.String()
}

func (m model) renderBufferBar(width int) string {
	var bar strings.Builder
	bar.WriteString("Boards: ")
	for i, buf := range m.buffers {
		if i > 0 {
			bar.WriteString(" | ")
		}
		if i == m.currentBufferIndex {
			bar.WriteString(activeBufferStyle.Render(buf.name))
		} else {
			bar.WriteString(buf.name)
		}
	}
	return barStyle.MaxWidth(width).Render(bar.String())
}

func (m model) statusLine() string {
	var status string
	switch m.mode {
	case ModeConfirm:
		var message string
		switch m.confirmAction {
		case ConfirmQuit:
			message = "Quit? (y/n)"
		case ConfirmCloseBuffer:
			message = "Close this board? Its elements will be lost. (y/n)"
		case ConfirmClearBoard:
			message = "Remove every element from this board? (y/n)"
		}
		status = "CONFIRM | " + message
	case ModeTextInput:
		status = fmt.Sprintf("TEXT | %s█ | Enter=done, Esc=cancel", m.editText)
	default:
		b := m.board()
		if b == nil {
			return ""
		}
		t := b.Coordinates().Transform()
		status = fmt.Sprintf("Tool: %s | Zoom: %d%% | Elements: %d | Export: %s",
			b.Tool(), int(t.Scale*100+0.5), b.Store().Len(), strings.ToUpper(string(m.exportFormat)))
		if id, ok := b.Store().Selected(); ok {
			if e, ok := b.Store().Get(id); ok {
				status += fmt.Sprintf(" | Selected: %s", e.Kind())
			}
		}
		if m.errorMessage == "" && m.successMessage == "" {
			status += " | ? for help | q to quit"
		}
	}

	style := statusStyle
	switch {
	case m.errorMessage != "":
		status += " | ERROR: " + m.errorMessage
		style = errorStyle
	case m.successMessage != "":
		status += " | " + m.successMessage
		style = successStyle
	}
	return style.Width(m.width).MaxWidth(m.width).Render(status)
}

// renderCanvas draws the board as braille dots, one cell per 8x16 screen
// pixels, with text labels and the selection drawn on top.
func (m model) renderCanvas(width, height int) []string {
	grid := make([][]rune, height)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", width))
	}
	b := m.board()
	if b == nil {
		return toLines(grid)
	}
	dims, ok := b.Dimensions()
	if !ok {
		return toLines(grid)
	}
	img, err := b.Rasterize(brailleRatio, false)
	if err != nil {
		logrus.WithError(err).Debug("Skipping frame")
		return toLines(grid)
	}

	originX := int(dims.Offset.X / cellWidth)
	originY := int(dims.Offset.Y / cellHeight)
	cols := int(dims.Canvas.Width / cellWidth)
	rows := int(dims.Canvas.Height / cellHeight)
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			if r := brailleCell(img, cx*2, cy*4); r != 0 {
				put(grid, originX+cx, originY+cy, r)
			}
		}
	}
	drawFrame(grid, originX-1, originY-1, originX+cols, originY+rows, '·')

	for _, n := range b.Surface().Nodes() {
		r := n.ClientRect
		x0 := originX + int(r.X/cellWidth)
		y0 := originY + int(r.Y/cellHeight)
		if l, ok := n.Element.(element.Labeled); ok {
			text, _ := l.Label()
			row := y0
			if n.Element.Kind() == element.KindSticky {
				row++
				x0++
			}
			for i, line := range strings.Split(text, "\n") {
				writeString(grid, x0, row+i, line)
			}
		}
		if n.Selected {
			x1 := originX + int((r.X+r.Width)/cellWidth)
			y1 := originY + int((r.Y+r.Height)/cellHeight)
			put(grid, x0-1, y0-1, '┌')
			put(grid, x1+1, y0-1, '┐')
			put(grid, x0-1, y1+1, '└')
			put(grid, x1+1, y1+1, '┘')
		}
	}
	return toLines(grid)
}

// brailleCell encodes the 2x4 block of img at (x, y) as a braille rune, or 0
// when the block is empty.
func brailleCell(img image.Image, x, y int) rune {
	bits := [4][2]rune{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}
	bounds := img.Bounds()
	var r rune
	for dy := 0; dy < 4; dy++ {
		for dx := 0; dx < 2; dx++ {
			p := image.Point{X: bounds.Min.X + x + dx, Y: bounds.Min.Y + y + dy}
			if !p.In(bounds) {
				continue
			}
			if _, _, _, a := img.At(p.X, p.Y).RGBA(); a > 0x4000 {
				r |= bits[dy][dx]
			}
		}
	}
	if r == 0 {
		return 0
	}
	return brailleBase + r
}

func put(grid [][]rune, x, y int, r rune) {
	if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) {
		grid[y][x] = r
	}
}

func writeString(grid [][]rune, x, y int, s string) {
	for i, r := range []rune(s) {
		put(grid, x+i, y, r)
	}
}

func drawFrame(grid [][]rune, x0, y0, x1, y1 int, r rune) {
	for x := x0; x <= x1; x++ {
		put(grid, x, y0, r)
		put(grid, x, y1, r)
	}
	for y := y0; y <= y1; y++ {
		put(grid, x0, y, r)
		put(grid, x1, y, r)
	}
}

func toLines(grid [][]rune) []string {
	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = string(row)
	}
	return lines
}

func toolHelp() []string {
	lines := make([]string, 0, len(interaction.Tools))
	for i, t := range interaction.Tools {
		lines = append(lines, fmt.Sprintf("  %d                %s", i+1, t))
	}
	return lines
}

func (m model) helpView() string {
	helpLines := []string{
		helpTitleStyle.Render("Studyboard Help"),
		"",
		"Tools:",
		"------",
	}
	helpLines = append(helpLines, toolHelp()...)
	helpLines = append(helpLines,
		"",
		"Mouse:",
		"------",
		"  Click/drag         Draw, place or select and move with the current tool",
		"  Wheel              Zoom around the pointer",
		"",
		"Editing:",
		"--------",
		"  Delete/Backspace   Delete the selected element (select tool)",
		"  Esc                Clear the selection",
		"  Enter              Edit the selected text or sticky note",
		"  [ ]                Rotate the selected element",
		"  < >                Shrink or grow the selected element",
		"  u / Ctrl+R         Undo / redo",
		"  p                  Paste clipboard text",
		"  X                  Clear the board",
		"",
		"View:",
		"-----",
		"  h/←/j/↓/k/↑/l/→    Pan",
		"  + / -              Zoom in / out",
		"  f                  Fit the canvas to the window",
		"  0                  Center the canvas at 100%",
		"  t                  Toggle light/dark theme",
		"",
		"Boards:",
		"-------",
		"  n                  New board",
		"  Tab / Shift+Tab    Next / previous board",
		"  w                  Close board",
		"",
		"Export:",
		"-------",
		"  e                  Export the board (or the selection) to the save directory",
		"  E                  Cycle export format (PNG, JPG, PDF, SVG)",
		"  y                  Copy SVG to the clipboard",
		"",
		"  ?/Esc/q            Close help",
	)

	height := m.height
	if height < 1 {
		height = len(helpLines)
	}
	start := min(m.helpScroll, max(0, len(helpLines)-height))
	end := min(start+height, len(helpLines))
	return strings.Join(helpLines[start:end], "\n")
}

var _ sizing.Container = (*terminal)(nil)
