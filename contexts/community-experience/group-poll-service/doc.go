// Package grouppollservice runs group chat polls: members open a poll, vote
// for one or more options, check progress and mention whoever has not voted.
//
// Each conversation holds at most one active poll, kept in process memory.
// Commands for the same conversation are serialized; different conversations
// never contend.
package grouppollservice
