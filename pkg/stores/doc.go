// Package stores persists render-run history in SQLite: one row per
// render run plus the serialized artifacts it produced. History makes a
// previous render inspectable after the working tree has moved on.
package stores
