/*
Package deprebuddy is a stateful depression-screening dialogue engine.

Each user turn is routed through a closed three-stage state machine
(Triage, Assessment, Resource). Structured PHQ answers are extracted from free
text and scored deterministically, and crisis language escalates the session to
the Resource stage for good, no matter which stage it was in.

# Architecture

The Engine orchestrates one turn at a time per session:

	sanitize → lock session → route (crisis check, scoring) → dispatch agent → record turn → save

Sessions live behind a pluggable ports.SessionStore (memory, file, Redis or SQLite)
and every operation on the same session ID is serialized by session.Manager.
The generation call is a ports.Generator: the Gemini client in production, the
deterministic agent.StaticGenerator offline.

# Usage

	eng := deprebuddy.New()
	res, err := eng.Chat(ctx, "", "I've been feeling down")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Message) // asks the first PHQ question

Internal faults never surface as errors from Chat: the turn degrades to
ApologyMessage and the session is left untouched. Only invalid input is
returned as an error.
*/
package deprebuddy
