package main

type Mode int

const (
	ModeNormal Mode = iota
	ModeTextInput
	ModeConfirm
)

type ConfirmAction int

const (
	ConfirmQuit ConfirmAction = iota
	ConfirmCloseBuffer
	ConfirmClearBoard
)

type ActionType int

const (
	ActionAdd ActionType = iota
	ActionRemove
	ActionUpdate
)

// barRows is the number of terminal rows drawn above the board.
const barRows = 1

// A terminal cell stands for this many screen pixels.
const (
	cellWidth  = 8.0
	cellHeight = 16.0
)

const (
	// Braille glyphs pack 2x4 dots into a cell, so the board is rasterized
	// at a quarter of its pixel size.
	brailleRatio = 0.25
	brailleBase  = 0x2800
	panStep      = 4 * cellWidth
	rotateStep   = 15.0
	scaleStep    = 1.1
	pasteFont    = 16.0
)
