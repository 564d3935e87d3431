package session

import "time"

// GroupGap is the largest timestamp gap two consecutive messages from the
// same sender can have and still render as one visual block.
const GroupGap = 3 * time.Minute

// GroupMessages splits an ordered message list into render blocks: runs
// of messages from the same sender no more than GroupGap apart.
func GroupMessages(messages []ChatMessage) [][]ChatMessage {
	if len(messages) == 0 {
		return nil
	}

	groups := make([][]ChatMessage, 0, len(messages))
	current := []ChatMessage{messages[0]}
	for _, msg := range messages[1:] {
		last := current[len(current)-1]
		if msg.SenderName == last.SenderName && msg.Timestamp.Sub(last.Timestamp) <= GroupGap {
			current = append(current, msg)
			continue
		}
		groups = append(groups, current)
		current = []ChatMessage{msg}
	}
	return append(groups, current)
}
