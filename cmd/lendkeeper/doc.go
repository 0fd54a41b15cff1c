// Command lendkeeper manages a school's lendable inventory: the catalog of
// books, revision copies and furniture, who holds what, overdue loans, fines
// and borrowing reports.
package main
