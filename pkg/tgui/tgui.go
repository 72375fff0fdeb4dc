package tgui

import "remindbot/internal/transport"

// Inline builds an inline keyboard row by row.
type Inline struct {
	rows [][]transport.Button
}

func NewInline() *Inline { return &Inline{} }

// Row appends a row; empty rows are skipped.
func (i *Inline) Row(btn ...transport.Button) *Inline {
	if len(btn) > 0 {
		i.rows = append(i.rows, btn)
	}
	return i
}

func (i *Inline) Len() int { return len(i.rows) }

func (i *Inline) Rows() [][]transport.Button { return i.rows }

// Options returns send options carrying the keyboard and the given parse mode.
func (i *Inline) Options(parseMode string) *transport.SendOptions {
	return &transport.SendOptions{ParseMode: parseMode, DisablePreview: true, Keyboard: i.rows}
}
