package apperror

import "errors"

var (
	ErrWrongTurn    = errors.New("it's not your turn")
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrGameFinished = errors.New("game is already finished")

	ErrNotActive     = errors.New("discovery session is not active")
	ErrAlreadyActive = errors.New("discovery session is already active")

	ErrUnknownPeer      = errors.New("peer is not nearby")
	ErrAlreadyConnected = errors.New("already connected to a peer")
	ErrNotConnected     = errors.New("not connected to a peer")
)
