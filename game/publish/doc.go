// Package publish renders the game board into README markdown and pushes it
// to where players see it.
//
// Renderer executes a text/template (built in, or a file for custom READMEs)
// with the scores, the board and the server address used for the arrow
// links. Publisher implementations write the result to a local file, commit it
// through the GitHub contents API, or discard it.
package publish
