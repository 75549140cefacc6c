/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log lines.

It counts stage entries, crisis escalations and completed assessments, and
records the latency and attempt count of every generation call.
*/
package observability
