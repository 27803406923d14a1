// Package conv provides checked integer conversions for values stored in
// fixed-width header fields.
package conv
