// Package sanitizer normalizes user input before validation and masks
// personal data before it reaches logs.
package sanitizer
