/*
Package ports defines the driven ports (interfaces) of the screening engine.

These interfaces decouple the dialogue core from external implementations, allowing
the engine to work with various storage backends and generation providers.

# Key Interfaces

  - SessionStore: Responsible for persisting and loading Sessions.
  - DistributedLocker: Provides distributed locking for concurrent session access across replicas.
  - Generator: Performs a single call to the hosted language model.
*/
package ports
