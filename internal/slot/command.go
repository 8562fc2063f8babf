package slot

import (
	"errors"
	"time"
)

type CommandType string

const (
	CommandTypeCreate CommandType = "slot.create"
	CommandTypeCancel CommandType = "slot.cancel"
)

var ErrInvalidInterval = errors.New("slot start must be before end")

// Command is an intent against one slot. Start and End are used by Create only.
type Command struct {
	Type  CommandType
	Start time.Time
	End   time.Time
}

func Create(start, end time.Time) Command {
	return Command{Type: CommandTypeCreate, Start: start, End: end}
}

func Cancel() Command {
	return Command{Type: CommandTypeCancel}
}

func (c Command) Validate() error {
	if c.Type == CommandTypeCreate && !c.Start.Before(c.End) {
		return ErrInvalidInterval
	}
	return nil
}
