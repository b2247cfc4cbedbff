package wire

import "token_scanner/internal/domain"

// Command is a typed update produced by the Mapper. The set is closed:
// SnapshotCommand, TickCommand and StatsCommand.
type Command interface {
	isCommand()
}

// SnapshotEntry is one mapped scanner item.
type SnapshotEntry struct {
	Token domain.Token
	// TotalSupply is 0 when the item did not carry a usable supply.
	TotalSupply float64
}

// SnapshotCommand replaces the ordering of one page and merges its items.
type SnapshotCommand struct {
	Page    int
	Entries []SnapshotEntry
}

// TickCommand applies a swap batch to one pair.
type TickCommand struct {
	domain.TickBatch
}

// StatsCommand merges audit facts into one pair.
type StatsCommand struct {
	domain.StatsUpdate
}

func (SnapshotCommand) isCommand() {}
func (TickCommand) isCommand()     {}
func (StatsCommand) isCommand()    {}
