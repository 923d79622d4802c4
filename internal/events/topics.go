package events

// Topics the adapters publish on, with their payload types. Page topics
// fire on the owning page's bus; config topics on the application bus.
const (
	// TopicCertificateError fires on every TLS failure a page reports.
	// Payload: *engine.CertificateError.
	TopicCertificateError = "page.certificate_error"

	// TopicLinkClicked fires when a link-click navigation is seen,
	// before the accept/reject decision. Payload: *url.URL.
	TopicLinkClicked = "page.link_clicked"

	// TopicLoadStarted fires when a main-frame load begins.
	// Payload: *url.URL.
	TopicLoadStarted = "page.load_started"

	// TopicShuttingDown fires once, when a page's shutdown begins.
	// Payload: struct{}{}.
	TopicShuttingDown = "page.shutting_down"

	// TopicConfigChanged fires after a config reload.
	// Payload: *config.Config (the new snapshot).
	TopicConfigChanged = "config.changed"
)
