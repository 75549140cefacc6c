/*
Package dialogue implements the screening state machine.

A turn is evaluated in a fixed priority order: the crisis check runs first on
every message, a raised crisis flag forces the Resource stage, and only then do
the per-stage rules apply (Triage hands off to Assessment, Assessment collects
answers until complete, Resource is terminal).

Decide mutates the working copy of the session it is given (crisis flag, answers)
and returns a Plan describing what the agent must say. Apply records the turn
once the agent reply is known. Callers that need all-or-nothing semantics pass
a clone to Decide and discard it on failure.
*/
package dialogue
