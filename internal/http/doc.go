// Package http provides HTTP handlers and middleware for the lab scheduler API.
//
// Every route except GET /healthz requires an `Authorization: Bearer <jwt>`
// header whose claims carry `sub`, `name` and `role` (student, teacher or
// admin). The router exposes the following endpoints:
//   - POST /reservations: books the lab or a set of seats. Body: {"date",
//     "start","end","seat_ids","purpose","subject","grade_level","section"}.
//     start/end accept RFC3339 or HH:MM on the given date.
//   - GET /reservations: the caller's reservations, newest first. With
//     ?date=YYYY-MM-DD the admin view of every reservation on that date.
//   - GET /reservations/{id}, POST /reservations/{id}/cancel,
//     POST /reservations/{id}/confirm and POST /reservations/{id}/attendance
//     (admin, body {"status":"attended"|"missed"}).
//   - GET /availability?date=: reservations, classes, seats, seat blocks and
//     fixed schedule occurrences for a date.
//   - GET /seats, PUT /seats, DELETE /seats/{id}: the seat catalog. Deleting
//     a seat returns the row compaction moves.
//   - GET /seat-blocks?date=, POST /seat-blocks, DELETE /seat-blocks/{id}.
//   - GET /fixed-schedule, GET /fixed-schedule/mine, PUT /fixed-schedule,
//     DELETE /fixed-schedule/{id}.
//   - GET /classes?date=, GET /classes/mine, POST /classes,
//     GET|PUT|DELETE /classes/{id}.
//   - GET /notifications, POST /notifications/{id}/read.
//
// Rejections render as {"error_code","kind","message","errors",
// "invalid_seat_ids","detail"}: validation 422, conflict 409, not found 404,
// forbidden 403, missing identity 401, storage 503.
package http
