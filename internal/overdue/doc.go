// Package overdue reports open loans past their due date.
//
// The scanner is read only. A record is overdue when it is open and its due
// date is strictly before the reference instant; closed records are never
// reported, however late they came back.
package overdue
