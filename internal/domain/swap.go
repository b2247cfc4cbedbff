package domain

import "time"

// Swap is one trade inside a tick batch. Price and Amount may be NaN when the
// wire value could not be parsed; the reducer falls back accordingly.
type Swap struct {
	Price         float64
	Amount        float64
	TokenIn       string
	Token0Address string
	IsOutlier     bool
	Timestamp     time.Time
}

// TickBatch is a batch of swaps for one pair.
type TickBatch struct {
	Key   PairKey
	Swaps []Swap
}

// StatsUpdate carries audit facts for one pair. Nil fields are absent and must
// leave the prior value untouched.
type StatsUpdate struct {
	PairAddress string
	ChainID     int

	ContractVerified  *bool
	Honeypot          *bool
	Mintable          *bool
	Freezable         *bool
	Renounced         *bool
	Locked            *bool
	Burned            *bool
	MigrationProgress *float64

	Website  *string
	Twitter  *string
	Telegram *string
	Discord  *string
}
