package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDataUnavailable     = errors.New("chain data unavailable")
	ErrInvalidPair         = errors.New("invalid token pair")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNoCandidates        = errors.New("no candidate routes")
	ErrQuoteExpired        = errors.New("quote expired")
	ErrUnsupportedExchange = errors.New("unsupported exchange")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrRateLimited         = errors.New("rate limited")
	ErrWSDisconnect        = errors.New("websocket disconnected")
	ErrLockHeld            = errors.New("lock already held")
)
