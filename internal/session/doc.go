// Package session holds the naming and launch rules shared by every
// command that creates or resumes a session.
//
// # Names
//
// A session name is what the user types ("exp1"). Its terminal profile is
// always named with the Claude- prefix ("Claude-exp1"), and its default
// background lives in a directory named after the session:
//
//	<menuPath>/backgrounds/exp1/background.png
//
// Names are restricted so they are safe as directory names and as terminal
// profile names on every platform: 1 to 64 characters drawn from letters,
// digits, space, '-', '_' and '.', not starting or ending with a space and
// never "." or "..".
//
// # Launch commands
//
// Every terminal profile resumes its own session:
//
//	claude --resume <id>
//
// The first launch of a session the menu created is different and is
// printed for the user to run once:
//
//	claude --resume <parent> --fork-session --session-id <new> --model <m>   (fork)
//	claude --session-id <new> --model <m>                                    (new)
//
// Both pin the new session id up front so the tracking store can record the
// session before the conversation CLI has written its first log line.
package session
