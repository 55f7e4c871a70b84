package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/chartx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgCollectComplete
)

type collectOutcome struct {
	result *tasks.CollectResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// collectCompleteMsg is the constructor for [MsgCollectComplete]
func collectCompleteMsg(result *tasks.CollectResult, err error) Msg {
	return Msg{kind: MsgCollectComplete, data: collectOutcome{result, err}}
}
