// Package window generates the cosine-sum analysis windows used by the
// spectrum helpers.
package window
