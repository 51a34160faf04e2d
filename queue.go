/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package expirecache

import "time"

// entry is a single cached mapping. It doubles as an intrusive node of recencyQueue:
// prev and next link neighboring entries in touch order.
// An entry is linked into the queue if and only if it is reachable from the cache index
// under its key; the two structures are always updated together.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time

	prev *entry[K, V]
	next *entry[K, V]
}

// recencyQueue is a doubly linked queue of entries ordered from the least recently
// touched (head) to the most recently touched (tail). The cache's liveTime is constant,
// so touch order is also expiry order: the head is simultaneously the LRU victim and
// the soonest entry to expire. All operations are O(1).
type recencyQueue[K comparable, V any] struct {
	head *entry[K, V]
	tail *entry[K, V]
}

// peekHead returns the least recently touched entry without removing it,
// or nil if the queue is empty.
func (q *recencyQueue[K, V]) peekHead() *entry[K, V] {
	return q.head
}

// append inserts ent at the tail, making it the most recently touched entry.
func (q *recencyQueue[K, V]) append(ent *entry[K, V]) {
	if q.head == nil {
		q.head = ent
		ent.prev = nil
	} else {
		ent.prev = q.tail
		q.tail.next = ent
	}
	q.tail = ent
	ent.next = nil
}

// popHead removes and returns the head, or nil if the queue is empty.
func (q *recencyQueue[K, V]) popHead() *entry[K, V] {
	ent := q.head
	if ent == nil {
		return nil
	}
	if q.head == q.tail {
		q.head = nil
		q.tail = nil
	} else {
		q.head = ent.next
		q.head.prev = nil
	}
	ent.prev = nil
	ent.next = nil
	return ent
}

// unlink removes ent from its current position. ent must be a queue member;
// unlinking a foreign entry corrupts the queue. When the queue holds a single
// entry, both ends are reset unconditionally.
func (q *recencyQueue[K, V]) unlink(ent *entry[K, V]) {
	if q.head == q.tail {
		q.head = nil
		q.tail = nil
		ent.prev = nil
		ent.next = nil
		return
	}
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		q.head = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		q.tail = ent.prev
	}
	ent.prev = nil
	ent.next = nil
}

// clear drops both ends of the queue. Detached entries become unreachable
// together with their link fields.
func (q *recencyQueue[K, V]) clear() {
	q.head = nil
	q.tail = nil
}
