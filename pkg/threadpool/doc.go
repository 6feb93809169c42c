// Package threadpool implements a bounded-backpressure task execution
// service on top of a lock-free slot queue and an admission wait-group.
//
// Producers call Enqueue, which blocks while the queue is full. Idle workers
// park instead of spinning, so an empty pool uses no CPU. Stop closes
// admission and returns once every accepted task has been run.
//
// # Race Detection
//
// Tasks travel from Enqueue to a worker through a slotqueue.Queue, whose
// slots are guarded by acquire/release turn counters the race detector
// cannot observe. Running tasks through a Pool under -race therefore
// reports false data races inside the queue. Tests that execute tasks
// should skip when slotqueue.RaceEnabled is true; lifecycle paths without
// tasks are race-clean.
package threadpool
