package domain

// FlashKind is the closed set of one-shot message categories shown to the
// user after a redirect.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashInfo    FlashKind = "info"
	FlashWarning FlashKind = "warning"
	FlashDanger  FlashKind = "danger"
)

type Flash struct {
	Kind    FlashKind
	Message string
}
