package cdp

// DialogManager is queried by send_command when a command's response was
// blocked by an open JavaScript dialog (spec.md §4.3 step 6). A node's
// owner (set via SetOwner) supplies one; the core never constructs a
// DialogManager itself. See internal/dialogmgr for the concrete
// implementation used by chromewire.
type DialogManager interface {
	// GetDialogMessage returns the text of the currently open dialog, or an
	// error if no dialog is open.
	GetDialogMessage() (string, error)
}

// Owner is the higher-level object a node serves. The core only ever asks
// it for a DialogManager; everything else about "owner" is opaque to the
// core, matching spec.md's data model ("owner back-reference ... used only
// to query a dialog manager").
type Owner interface {
	JavaScriptDialogManager() DialogManager
}
