// Package widget is the chat client: it owns the visible conversation,
// decides where replies come from, and ends idle sessions.
//
// A Session talks to a Surface (whatever renders messages and owns the
// input box) and a ReplySource. The only ReplySource shipped is Resolver,
// which calls the chat proxy when a backend is available and answers from
// local templates otherwise.
package widget
