package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"studyboard/engine"
	"studyboard/export"
)

type exportDoneMsg struct {
	path string
	err  error
}

// exportOptions builds the options for an export of b, snapshotting its
// elements now.
func (m *model) exportOptions(b *engine.Board, format export.Format) export.Options {
	_, selected := b.Store().Selected()
	return export.Options{
		Format:            format,
		Quality:           m.config.Export.Quality,
		Multiplier:        m.config.Export.Multiplier,
		IncludeBackground: m.config.Export.IncludeBackground,
		SelectedOnly:      selected,
		Elements:          b.Elements(),
	}
}

// exportBoard writes the current board to the save directory in the
// selected format without blocking input.
func (m *model) exportBoard() tea.Cmd {
	b := m.board()
	if b == nil {
		return nil
	}
	format := m.exportFormat
	opts := m.exportOptions(b, format)
	opts.Filename = fmt.Sprintf("%s-%s.%s", strings.ReplaceAll(strings.ToLower(b.Name()), " ", "-"),
		timeNow().Format("20060102-150405"), format)
	path := m.config.GetSavePath(opts.Filename)
	log := logrus.WithFields(logrus.Fields{"board": b.Name(), "path": path})

	return func() tea.Msg {
		err := b.ExportFile(context.Background(), path, opts, func(p export.Progress) {
			log.WithFields(logrus.Fields{"stage": p.Stage, "percent": p.Percent}).Debug(p.Message)
		})
		if err != nil {
			log.WithError(err).Error("Export failed")
		}
		return exportDoneMsg{path: path, err: err}
	}
}

// nextExportFormat cycles the format used by exportBoard.
func (m *model) nextExportFormat() {
	for i, f := range export.Formats {
		if f == m.exportFormat {
			m.exportFormat = export.Formats[(i+1)%len(export.Formats)]
			return
		}
	}
	m.exportFormat = export.PNG
}

// copySVG puts the SVG of the selection, or of the whole board, on the
// clipboard.
func (m *model) copySVG() error {
	b := m.board()
	if b == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := b.ExportCanvas(context.Background(), &buf, m.exportOptions(b, export.SVG), nil); err != nil {
		return err
	}
	if err := clipboard.WriteAll(buf.String()); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}
