package seating

import "sort"

// Move renames one seat as part of a compaction batch.
type Move struct {
	From   string `json:"from"`
	To     string `json:"to"`
	NewRow string `json:"new_row"`
}

// CompactRows computes the row renames that make the rows on side contiguous
// from the side's base letter, skipping letters used by the other side.
// Only rows whose letter changes appear in the result. Rows that would move
// past 'Z' are left as they are.
func CompactRows(side Side, sideSeats []Seat, otherSideRows []string) map[string]string {
	taken := make(map[byte]struct{}, len(otherSideRows))
	for _, row := range otherSideRows {
		if len(row) == 1 {
			taken[row[0]] = struct{}{}
		}
	}

	renames := make(map[string]string)
	next := side.BaseRow()
	for _, row := range Rows(sideSeats, side) {
		for next <= 'Z' {
			if _, used := taken[next]; !used {
				break
			}
			next++
		}
		if next > 'Z' {
			break
		}
		if target := string(next); target != row {
			renames[row] = target
		}
		next++
	}
	return renames
}

// PlanMoves turns a row rename map into per-seat moves. Columns are kept.
func PlanMoves(seats []Seat, renames map[string]string) []Move {
	moves := make([]Move, 0)
	for _, seat := range seats {
		target, ok := renames[seat.Row]
		if !ok {
			continue
		}
		moves = append(moves, Move{From: seat.ID, To: SeatID(target, seat.Column), NewRow: target})
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].From < moves[j].From })
	return moves
}
