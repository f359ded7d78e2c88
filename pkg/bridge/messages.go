package bridge

import (
	"fmt"
	"strings"
)

func extractedMessage(label, reply string) string {
	return fmt.Sprintf("Claude (%s): %s", label, reply)
}

func deliveredMessage(serviceURL, question string) string {
	return fmt.Sprintf(`Message sent to %s

Your question: %s

The session is active. Check the %s tab for the full answer.`, serviceURL, question, serviceURL)
}

func apiMessage(provider, text string) string {
	return fmt.Sprintf("%s\n\n(answered via the %s API)", strings.TrimSpace(text), provider)
}

func guidedMessage(serviceURL, question string) string {
	return fmt.Sprintf(`%s is open in your browser.

Your question: "%s"

Next steps:
1. Switch to the %s tab
2. Paste your question: "%s"
3. Send the message

The question was not sent automatically.`, serviceURL, question, serviceURL, question)
}

func authRequiredMessage(serviceURL string) string {
	return fmt.Sprintf(`Authentication required before first use.

To connect:
1. Open %s in your browser
2. Sign in to your account
3. Run "nexia cookies extract" or "nexia bridge setup", then ask again

Status: waiting for authentication. This is only needed once; the session is remembered.`, serviceURL)
}

const emptyQuestionMessage = "Nothing to ask: the question is empty. Type a question and try again."
