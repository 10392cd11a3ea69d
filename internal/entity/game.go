package entity

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-direct/internal/apperror"
)

// Mark is the content of a board cell.
type Mark string

const (
	PlayerX Mark = "X"
	PlayerO Mark = "O"

	EmptyCell Mark = ""
)

// WinLines lists the winning lines in scan order: both diagonals, the rows top to bottom,
// then the columns left to right.
var WinLines = [8][3]Location{
	{UpperLeft, MiddleCenter, LowerRight},
	{UpperRight, MiddleCenter, LowerLeft},

	{UpperLeft, UpperCenter, UpperRight},
	{MiddleLeft, MiddleCenter, MiddleRight},
	{LowerLeft, LowerCenter, LowerRight},

	{UpperLeft, MiddleLeft, LowerLeft},
	{UpperCenter, MiddleCenter, LowerCenter},
	{UpperRight, MiddleRight, LowerRight},
}

// Board holds one mark per Location.
type Board [BoardSize]Mark

// MarshalJSON - encodes the board as an object keyed by location name.
func (that Board) MarshalJSON() ([]byte, error) {
	cells := make(map[string]Mark, BoardSize)
	for _, location := range Locations() {
		cells[location.String()] = that[location]
	}

	return json.Marshal(cells)
}

func (that *Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}
	return true
}

// Count returns how many cells hold the given mark.
func (that *Board) Count(mark Mark) int {
	count := 0
	for _, cell := range that {
		if cell == mark {
			count++
		}
	}
	return count
}

// Game is the rule engine of a single match. It is not safe for concurrent use.
type Game struct {
	board Board
	turn  Mark
}

// NewGame - creates a match with an empty board; X always goes first.
func NewGame() *Game {
	return &Game{
		turn: PlayerX,
	}
}

// ApplyMove places the player's mark on location and passes the turn.
// The game is left untouched when the move is rejected.
// Finished games are not refused here, callers check IsOver first.
func (that *Game) ApplyMove(player Mark, location Location) error {
	if !location.IsValid() {
		return fmt.Errorf("%w: cell %d", ErrInvalidLocation, int(location))
	}

	if that.turn != player {
		return fmt.Errorf("%w: %s to move", apperror.ErrWrongTurn, that.turn)
	}

	if that.board[location] != EmptyCell {
		return fmt.Errorf("%w: %s", apperror.ErrCellOccupied, location)
	}

	that.board[location] = player
	that.turn = toggleMark(player)

	return nil
}

// Winner reports the first player owning a full line, X scanned before O.
func (that *Game) Winner() (Mark, bool) {
	for _, player := range [2]Mark{PlayerX, PlayerO} {
		for _, line := range WinLines {
			if that.board[line[0]] == player && that.board[line[1]] == player && that.board[line[2]] == player {
				return player, true
			}
		}
	}

	return EmptyCell, false
}

func (that *Game) IsOver() bool {
	if _, ok := that.Winner(); ok {
		return true
	}

	// no winner yet, the game continues until all the cells are taken
	return that.board.IsFull()
}

func (that *Game) CurrentTurn() Mark {
	return that.turn
}

func (that *Game) Cell(location Location) Mark {
	if !location.IsValid() {
		return EmptyCell
	}
	return that.board[location]
}

// Board returns a copy of the board.
func (that *Game) Board() Board {
	return that.board
}

func toggleMark(currentMark Mark) Mark {
	if currentMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
