package domain

// Category tags a log line with the part of the bridge it describes.
type Category string

const (
	CategoryNotice     Category = "notice"
	CategoryDebug      Category = "debug"
	CategoryError      Category = "error"
	CategoryCmdSuccess Category = "command-success"
	CategoryOutbound   Category = "outbound"
	CategoryInbound    Category = "inbound"
)
