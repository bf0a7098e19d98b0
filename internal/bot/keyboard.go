package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cueclub/internal/model"
	"cueclub/internal/slots"
)

func gameKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎱 Snooker", "game:snooker"),
			tgbotapi.NewInlineKeyboardButtonData("🎱 8 Ball Pool", "game:8ball"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
}

func unitsKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 2)
	var row []tgbotapi.InlineKeyboardButton
	for n := 1; n <= 4; n++ {
		label := fmt.Sprintf("%d game", n)
		if n > 1 {
			label = fmt.Sprintf("%d games", n)
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("units:%d", n)))
	}
	rows = append(rows, row)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:game"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func payKeyboard(prefix string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💵 Cash", prefix+model.PayCash),
			tgbotapi.NewInlineKeyboardButtonData("📲 UPI", prefix+model.PayUPI),
		),
	)
}

func idTypeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Aadhaar", "idt:aadhaar"),
			tgbotapi.NewInlineKeyboardButtonData("PAN", "idt:pan"),
		),
	)
}

func confirmKeyboard(confirmData string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", confirmData),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
	)
}

// slotKeyboard renders the day menu three buttons per row. Unavailable
// starts stay visible but disabled behind a noop callback.
func slotKeyboard(menu []slots.Candidate) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range menu {
		label := c.Label()
		data := "slot:" + c.Start.Format("15:04")
		if !c.Available {
			label = "⛔ " + label
			data = "noop"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, data))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:date"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// calendarKeyboard builds a Monday-first month grid. Past days of the
// current month are rendered as dots behind a noop callback.
func calendarKeyboard(year int, month time.Month, now time.Time) tgbotapi.InlineKeyboardMarkup {
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	weekdayOffset := int(firstDay.Weekday())
	if weekdayOffset == 0 {
		weekdayOffset = 7
	}
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d", month.String(), year), "noop"),
	})
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Mo", "noop"),
		tgbotapi.NewInlineKeyboardButtonData("Tu", "noop"),
		tgbotapi.NewInlineKeyboardButtonData("We", "noop"),
		tgbotapi.NewInlineKeyboardButtonData("Th", "noop"),
		tgbotapi.NewInlineKeyboardButtonData("Fr", "noop"),
		tgbotapi.NewInlineKeyboardButtonData("Sa", "noop"),
		tgbotapi.NewInlineKeyboardButtonData("Su", "noop"),
	})

	day := 1
	for day <= daysInMonth {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for col := 1; col <= 7; col++ {
			if len(rows) == 2 && col < weekdayOffset {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "noop"))
				continue
			}
			if day > daysInMonth {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "noop"))
				continue
			}
			date := time.Date(year, month, day, 0, 0, 0, 0, time.Local)
			if date.Before(today) {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", "noop"))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("%d", day), "date:"+date.Format("2006-01-02")))
			}
			day++
		}
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:units"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
