package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CommandType tags an inbound bill-room frame. The set is closed: anything
// else is a protocol error and closes the session.
type CommandType string

const (
	CommandAccept       CommandType = "accept"
	CommandReject       CommandType = "reject"
	CommandUpdateAmount CommandType = "update_amount"
)

// Command is one decoded inbound frame. Amount is set only for
// update_amount. The participant identity never travels in the frame; it is
// always taken from the connection's authenticated user.
type Command struct {
	Type   CommandType      `json:"type"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// decodeCommand parses an inbound frame into the closed command set,
// rejecting unknown tags and malformed payloads explicitly.
func decodeCommand(frame []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(frame, &cmd); err != nil {
		return Command{}, fmt.Errorf("malformed command frame: %w", err)
	}
	switch cmd.Type {
	case CommandAccept, CommandReject:
		return cmd, nil
	case CommandUpdateAmount:
		if cmd.Amount == nil {
			return Command{}, fmt.Errorf("update_amount requires an amount")
		}
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
}
