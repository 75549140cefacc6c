/*
Package session implements the session table of the screening service.

The Manager wraps a ports.SessionStore and makes every operation on a given
session ID linearizable through reference-counted per-ID mutexes: turns for the
same conversation run one after another, while different conversations never
wait on each other beyond a map lookup. An optional DistributedLocker extends
the guarantee across replicas sharing a store.
*/
package session
