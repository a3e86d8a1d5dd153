// Package mdadapter renders markdown entries for preview.
//
// Front matter is split off into metadata and [[name]] links to other
// shared entries are turned into links to the files API.
package mdadapter
