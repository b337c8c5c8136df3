/*
Package comm provides the collective-operation substrate for SPMD code.

A Comm joins a fixed set of ranks established at job start. The three
collective helpers the redundancy core relies on — AllTrue (logical AND),
AllReduceSum, and BcastString — plus Barrier and Split are the only
cross-rank primitives in the library.

The in-process implementation (NewWorld) runs every rank as a goroutine
over a generation-counted rendezvous. It backs the test harness and
single-node tooling; a job launcher that wires ranks across processes
supplies its own Comm.
*/
package comm
