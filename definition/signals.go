package definition

import "github.com/zoobzio/capitan"

// Binding signals.
var (
	// BindingStarted is emitted when a binding begins watching its source.
	BindingStarted = capitan.NewSignal(
		"formstate.definition.binding.started",
		"Definition binding started",
	)

	// BindingStopped is emitted when the watch loop exits.
	BindingStopped = capitan.NewSignal(
		"formstate.definition.binding.stopped",
		"Definition binding stopped",
	)

	// DefinitionLoaded is emitted when a document is applied to the controller.
	DefinitionLoaded = capitan.NewSignal(
		"formstate.definition.loaded",
		"Definition applied",
	)

	// DefinitionFailed is emitted when a document cannot be decoded or compiled.
	DefinitionFailed = capitan.NewSignal(
		"formstate.definition.failed",
		"Definition rejected",
	)
)

// Field keys for binding events.
var (
	// KeyContentType is the codec's content type.
	KeyContentType = capitan.NewStringKey("content_type")

	// KeyReseeded reports whether a document started a new epoch.
	KeyReseeded = capitan.NewStringKey("reseeded")
)
