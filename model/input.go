package model

// InputKind tags an inbound transport event.
type InputKind int

const (
	InputText InputKind = iota
	InputFile
	InputButton
	// InputSkip is the distinguished skip signal. The transport layer
	// maps both the skip button and the /skip command onto it.
	InputSkip
	InputCancel
)

// Input is one inbound event from the transport, already stripped down
// to what validation needs. Payload holds the message text, the button
// callback data, or the file reference depending on Kind.
type Input struct {
	Kind    InputKind
	Payload string
}

// Answer is one accepted slot of a session's answer set.
type Answer struct {
	Value   string
	Skipped bool
}
