// Package email sends transactional mail.
//
// EmailSender is the single abstraction. NewPostmarkClient delivers through
// Postmark; NewDevSender writes each message to a directory as an HTML file
// plus a JSON metadata file, which is what local runs use instead of a real
// provider.
//
// Message bodies are built with the templ components in the templates
// subpackage and rendered to a string with templates.Render.
package email
