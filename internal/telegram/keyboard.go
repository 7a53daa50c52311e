package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data carried by the inline buttons.
const (
	ActionRefresh        = "refresh"
	ActionAllErrors      = "all_errors"
	ActionAPIErrors      = "api_errors"
	ActionWSErrors       = "ws_errors"
	ActionLogs           = "logs"
	ActionClear          = "clear"
	ActionDownloadLogs   = "download_logs"
	ActionDownloadErrors = "download_errors"
	ActionBack           = "back"
	ActionHelp           = "help"
)

type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, one slice per row. A nil keyboard removes
// the buttons from a message.
type Keyboard [][]Button

func (k Keyboard) markup() *tgbotapi.InlineKeyboardMarkup {
	if len(k) == 0 {
		return nil
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k))
	for _, row := range k {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func dashboardKeyboard() Keyboard {
	return Keyboard{
		{{"🔄 Refresh", ActionRefresh}, {"🚨 All Errors", ActionAllErrors}},
		{{"🌐 API Errors", ActionAPIErrors}, {"📡 WS Errors", ActionWSErrors}},
		{{"📋 Logs", ActionLogs}, {"🧹 Clear", ActionClear}},
		{{"❓ Help", ActionHelp}},
	}
}

func errorsKeyboard(view View) Keyboard {
	var filters []Button
	switch view {
	case ViewAPIErrors:
		filters = []Button{{"📡 WS Errors", ActionWSErrors}, {"🚨 All Errors", ActionAllErrors}}
	case ViewWSErrors:
		filters = []Button{{"🌐 API Errors", ActionAPIErrors}, {"🚨 All Errors", ActionAllErrors}}
	default:
		filters = []Button{{"🌐 API Errors", ActionAPIErrors}, {"📡 WS Errors", ActionWSErrors}}
	}
	return Keyboard{
		filters,
		{{"📥 Download Errors", ActionDownloadErrors}},
		{{"⬅️ Back", ActionBack}},
	}
}

func logsKeyboard() Keyboard {
	return Keyboard{
		{{"📥 Download Logs", ActionDownloadLogs}, {"🔄 Refresh Logs", ActionLogs}},
		{{"⬅️ Back", ActionBack}},
	}
}

func backKeyboard() Keyboard {
	return Keyboard{{{"⬅️ Back", ActionBack}}}
}
