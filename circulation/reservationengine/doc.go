// Package reservationengine implements the reservation queue lifecycle:
// placing a user in a book's waiting queue, promoting the head of the queue
// to ready for pickup, and cancelling reservations.
//
// Queue positions are contiguous per book. Whenever a reservation leaves
// the pending state the whole pending set is renumbered inside the same
// transaction, so readers never observe gaps. All mutations of one book's
// queue serialize on the book's inventory row lock.
package reservationengine
