package store

import "strings"

var keyReplacer = strings.NewReplacer("/", "", ":", "", ".", "")

// Sanitize strips '/', ':' and '.' so the key is usable as an SQL primary
// key and as an object store id. Keys differing only in those characters
// collapse to the same record. The result may be empty.
func Sanitize(key string) string {
	return keyReplacer.Replace(key)
}
