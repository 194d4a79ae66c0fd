// Package seating models the bookable seat catalog: seat identifiers, the
// YAML seed format and row-letter compaction.
package seating

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Side identifies which half of the lab a seat belongs to.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

var (
	// ErrInvalidRow indicates a row that is not a single uppercase letter.
	ErrInvalidRow = errors.New("seating: row must be a single letter A-Z")
	// ErrInvalidColumn indicates a column outside 1-99.
	ErrInvalidColumn = errors.New("seating: column must be between 1 and 99")
	// ErrInvalidSide indicates a side other than left or right.
	ErrInvalidSide = errors.New("seating: side must be left or right")
)

// ParseSide normalises a side name.
func ParseSide(value string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(value))) {
	case SideLeft:
		return SideLeft, nil
	case SideRight:
		return SideRight, nil
	default:
		return "", ErrInvalidSide
	}
}

// BaseRow is the first row letter a side compacts towards.
func (s Side) BaseRow() byte {
	if s == SideRight {
		return 'D'
	}
	return 'A'
}

// Seat is one bookable position in the lab.
type Seat struct {
	ID     string `json:"id"`
	Row    string `json:"row"`
	Column int    `json:"column"`
	Side   Side   `json:"side"`
	Active bool   `json:"active"`
}

// SeatID derives the identifier from a row letter and column number.
func SeatID(row string, column int) string {
	return fmt.Sprintf("%s%d", strings.ToUpper(strings.TrimSpace(row)), column)
}

// NormalizeID uppercases and trims a client supplied seat id.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NewSeat validates the position and returns an active seat.
func NewSeat(row string, column int, side Side) (Seat, error) {
	row = strings.ToUpper(strings.TrimSpace(row))
	if len(row) != 1 || row[0] < 'A' || row[0] > 'Z' {
		return Seat{}, ErrInvalidRow
	}
	if column < 1 || column > 99 {
		return Seat{}, ErrInvalidColumn
	}
	if side != SideLeft && side != SideRight {
		return Seat{}, ErrInvalidSide
	}
	return Seat{ID: SeatID(row, column), Row: row, Column: column, Side: side, Active: true}, nil
}

// Sort orders seats by row letter, then column.
func Sort(seats []Seat) {
	sort.SliceStable(seats, func(i, j int) bool {
		if seats[i].Row != seats[j].Row {
			return seats[i].Row < seats[j].Row
		}
		return seats[i].Column < seats[j].Column
	})
}

// Rows returns the distinct rows used by seats on side, sorted.
func Rows(seats []Seat, side Side) []string {
	seen := make(map[string]struct{})
	rows := make([]string, 0)
	for _, seat := range seats {
		if seat.Side != side {
			continue
		}
		if _, ok := seen[seat.Row]; ok {
			continue
		}
		seen[seat.Row] = struct{}{}
		rows = append(rows, seat.Row)
	}
	sort.Strings(rows)
	return rows
}
