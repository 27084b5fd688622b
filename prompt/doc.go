// Package prompt renders the system prompt a speaker sees, the structured
// termination contract appended for facilitators and the forgiving parser
// that reads a facilitator's reply back.
package prompt
