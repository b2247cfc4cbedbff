package wire

import (
	"fmt"

	"token_scanner/internal/domain"

	jsoniter "github.com/json-iterator/go"
)

// Event names of the streaming protocol.
const (
	EventScannerFilter        = "scanner-filter"         // client -> server
	EventScannerPairs         = "scanner-pairs"          // server -> client
	EventSubscribePair        = "subscribe-pair"         // client -> server
	EventUnsubscribePair      = "unsubscribe-pair"       // client -> server
	EventSubscribePairStats   = "subscribe-pair-stats"   // client -> server
	EventUnsubscribePairStats = "unsubscribe-pair-stats" // client -> server
	EventTick                 = "tick"                   // server -> client
	EventPairStats            = "pair-stats"             // server -> client
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the frame of every websocket message.
type Envelope struct {
	Event string              `json:"event"`
	Data  jsoniter.RawMessage `json:"data"`
}

// Encode builds a serialized envelope.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses a frame. It does not look at Data.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", domain.ErrMalformedEnvelope)
	}
	return env, nil
}

// DecodeData unmarshals the payload of env into v.
func DecodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", domain.ErrMalformedEnvelope, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedEnvelope, env.Event, err)
	}
	return nil
}

// Marshal exposes the package codec for callers that write JSON outside envelopes.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent is Marshal with indentation.
func MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// ScannerPairs is the payload of a scanner-pairs event.
type ScannerPairs struct {
	Filter domain.ScannerFilter `json:"filter"`
	domain.ScannerResult
}

// SwapRecord is one swap of a tick event. Numbers are strings on the wire.
type SwapRecord struct {
	Price         string `json:"priceToken1Usd"`
	Amount        string `json:"amountToken1"`
	TokenIn       string `json:"tokenInAddress"`
	Token0Address string `json:"token0Address,omitempty"`
	IsOutlier     bool   `json:"isOutlier"`
	Timestamp     int64  `json:"timestamp"` // unix millis
}

// Tick is the payload of a tick event.
type Tick struct {
	Pair  domain.PairKey `json:"pair"`
	Swaps []SwapRecord   `json:"swaps"`
}

// PairStats is the payload of a pair-stats event. Absent fields are nil.
type PairStats struct {
	PairAddress string `json:"pairAddress"`
	ChainID     int    `json:"chainId"`

	ContractVerified     *bool   `json:"contractVerified,omitempty"`
	HoneyPot             *bool   `json:"honeyPot,omitempty"`
	IsMintAuthDisabled   *bool   `json:"isMintAuthDisabled,omitempty"`
	IsFreezeAuthDisabled *bool   `json:"isFreezeAuthDisabled,omitempty"`
	ContractRenounced    *bool   `json:"contractRenounced,omitempty"`
	LiquidityLocked      *bool   `json:"liquidityLocked,omitempty"`
	TokenBurned          *bool   `json:"tokenBurned,omitempty"`
	MigrationProgress    *string `json:"migrationProgress,omitempty"`

	WebLink      *string `json:"webLink,omitempty"`
	WebsiteLink  *string `json:"websiteLink,omitempty"`
	TwitterLink  *string `json:"twitterLink,omitempty"`
	Twitter      *string `json:"twitter,omitempty"`
	TelegramLink *string `json:"telegramLink,omitempty"`
	Telegram     *string `json:"telegram,omitempty"`
	DiscordLink  *string `json:"discordLink,omitempty"`
	Discord      *string `json:"discord,omitempty"`
}
