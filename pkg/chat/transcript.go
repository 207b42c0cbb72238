package chat

import (
	"github.com/pkoukk/tiktoken-go"

	"graphchat/pkg/ai"
)

// TrimToBudget drops the oldest messages until the transcript fits the given
// token budget (o200k_base encoding). The newest message is always kept,
// even when it alone exceeds the budget, so a turn can never trim itself
// away. A budget <= 0 returns the input unchanged.
func TrimToBudget(messages []ai.ChatMessage, budget int) ([]ai.ChatMessage, error) {
	if budget <= 0 || len(messages) == 0 {
		return messages, nil
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}

	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		total += len(enc.Encode(messages[i].Message, nil, nil))
		if total > budget && i < len(messages)-1 {
			break
		}
		start = i
	}

	return messages[start:], nil
}
