package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kalambet/aura/internal/conversation"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// printTurn writes one transcript turn with its attachment, if any.
func printTurn(w io.Writer, name string, t conversation.Turn) {
	who := colorize(colorCyan, name+">")
	if t.Role == conversation.RoleUser {
		who = colorize(colorBold, "you>")
	}
	fmt.Fprintf(w, "%s %s\n", who, t.Text)

	if t.Attachment == nil {
		return
	}
	if img := t.Attachment.Image; img != nil {
		url := img.URL
		if len(url) > 80 {
			url = url[:80] + "..."
		}
		fmt.Fprintf(w, "  [image] %s\n", url)
	}
	if ord := t.Attachment.Order; ord != nil {
		data, err := json.MarshalIndent(ord.Payload, "  ", "  ")
		if err != nil {
			return
		}
		fmt.Fprintf(w, "  [%s]\n  %s\n", ord.Domain, data)
	}
}
