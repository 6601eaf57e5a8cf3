package orchestrator

import "fmt"

// Fixed assistant texts.
const (
	ConnectionApology = "I apologize, but I encountered a brief connection issue. Please try your message again, and I'll be ready to assist you."
	ImageApology      = "I apologize, but I encountered an issue generating the image. Please try again with a different prompt."
	BookingApology    = "I apologize, but I encountered an issue processing your request. Please try again."
)

func imageText(prompt string) string {
	return fmt.Sprintf("I've generated an image based on your request: \"%s\"", prompt)
}

func fileProcessedText(name string) string {
	return fmt.Sprintf("I've successfully processed \"%s\" and can now reference its content in our conversation. "+
		"Feel free to ask me questions about the document or request analysis of its contents.", name)
}

func originNote(assistantName string) string {
	return "Generated from your conversation with " + assistantName
}

func fileTooLargeText(limit int64) string {
	return fmt.Sprintf("File size must be less than %s.", formatSize(limit))
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
