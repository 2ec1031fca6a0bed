package entity

import (
	"time"
)

// TransactionRecord is one transaction touching the queried address. TxHash is unique
// within a normalized result.
type TransactionRecord struct {
	TxHash        string     `json:"tx_hash"`
	BlockSignedAt time.Time  `json:"block_signed_at"`
	FromAddress   string     `json:"from_address"`
	ToAddress     string     `json:"to_address"`
	Successful    bool       `json:"successful"`
	Value         string     `json:"value"`
	LogEvents     []LogEvent `json:"-"`
}

// LogEvent keeps only what the tabular export needs from an emitted event.
type LogEvent struct {
	DecodedName string
	RawTopics   []string
}

// Label is the decoded event name, falling back to the first raw topic.
func (e LogEvent) Label() string {
	if e.DecodedName != "" {
		return e.DecodedName
	}
	if len(e.RawTopics) > 0 {
		return e.RawTopics[0]
	}
	return ""
}
