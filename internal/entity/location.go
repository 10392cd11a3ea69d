package entity

import (
	"errors"
	"fmt"
)

var ErrInvalidLocation = errors.New("invalid board location")

// Location identifies one of the nine board cells, row by row from the upper-left corner.
type Location int

const (
	UpperLeft Location = iota
	UpperCenter
	UpperRight
	MiddleLeft
	MiddleCenter
	MiddleRight
	LowerLeft
	LowerCenter
	LowerRight
)

// BoardSize is the number of cells on the board.
const BoardSize = 9

var locationNames = [BoardSize]string{
	"upper-left", "upper-center", "upper-right",
	"middle-left", "middle-center", "middle-right",
	"lower-left", "lower-center", "lower-right",
}

// Locations returns every location in board order.
func Locations() []Location {
	locations := make([]Location, BoardSize)
	for i := range locations {
		locations[i] = Location(i)
	}
	return locations
}

// ParseLocation - maps a location name like "middle-center" to its Location.
func ParseLocation(name string) (Location, error) {
	for i, locationName := range locationNames {
		if locationName == name {
			return Location(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidLocation, name)
}

func (that Location) IsValid() bool {
	return that >= UpperLeft && that <= LowerRight
}

func (that Location) String() string {
	if !that.IsValid() {
		return fmt.Sprintf("location(%d)", int(that))
	}
	return locationNames[that]
}
