package interfaces

// Sanitizer strips unsafe markup before content reaches storage.
type Sanitizer interface {
	// SanitizeHTML keeps the allowed rich text subset.
	SanitizeHTML(raw string) string
	// SanitizePlainText strips every tag, used for SEO text fields.
	SanitizePlainText(raw string) string
}
