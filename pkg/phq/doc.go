/*
Package phq implements the deterministic PHQ screening logic.

It owns the literal question bank, the extraction of a 0-3 item score from free
text, the accumulation of answers into a session and the classification of the
total into a severity category. Every function here is pure with respect to I/O;
RecordAnswer is the only function that mutates a session.

Based on the PHQ-9 (Patient Health Questionnaire-9):
https://www.mdcalc.com/calc/1725/phq9-patient-health-questionnaire9

Only the first eight items are scored. The ninth item (self-harm ideation) is kept
apart as SafetyQuestion: an affirmative reply to it raises the crisis flag instead
of adding to the total.
*/
package phq
