/*
Package domain contains the core domain models of the screening dialogue.

It defines the fundamental entities of the state machine: the Session (one per
conversation), the closed set of dialogue Stages, the severity Categories derived
from the PHQ total, and the sentinel errors shared by every layer. This package is
kept pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - Session: Captures the runtime snapshot of a conversation (Stage, History, Answers, flags).
  - Stage: Triage, Assessment or Resource. Any other value is rejected when decoding.
  - Category: Severity classification of a completed assessment.
  - LifecycleHooks: Callbacks for observing stage transitions, crises and dispatches.
*/
package domain
