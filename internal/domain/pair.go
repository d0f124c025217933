package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Signal bus destinations for pair discoveries: a live Pub/Sub channel for
// the sniper and a durable stream for replay.
const (
	BusChannelPairs = "sniperd:pairs"
	StreamPairs     = "sniperd:pairs:log"
)

// PairEvent announces a newly created pool observed on chain. It is the wire
// format published on the signal bus, so fields carry JSON tags.
type PairEvent struct {
	Network      string         `json:"network"`
	Exchange     ExchangeID     `json:"exchange"`
	PairAddress  common.Address `json:"pair_address"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	BlockNumber  uint64         `json:"block_number"`
	DiscoveredAt time.Time      `json:"discovered_at"`
}

// Key returns the dedup key for this event. Two sightings of the same pair
// on the same network collapse to one key regardless of block.
func (e PairEvent) Key() string {
	return e.Network + ":" + e.PairAddress.Hex()
}
